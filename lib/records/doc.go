/*
Package records defines the domain records cached by flipcache and the key conventions
under which they are persisted.

A Record is a tagged union over the three record shapes of a reseller:

  - Listing: an inventory item, identified by itemId
  - Order: a sold item, identified by transactionId
  - Expense: a one-time or subscription cost, identified by id

Every record exposes its identity (the merge key inside a root collection), its partition
and its dates. Dates are selected by a FilterKey (createdAt, dateListed, sale.date) and
are kept in the form the remote sent them; a date that is missing or can not be parsed is
reported as absent, which the sort and filter functions treat differently.

Keys:

	<root>-<uid>            merged collection
	<root>-<uid>-store      partition membership of the merged collection
	<root>-subcols-<uid>    cached partition list
*/
package records
