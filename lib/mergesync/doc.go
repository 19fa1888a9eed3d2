/*
Package mergesync keeps the local mirror of a partitioned remote collection consistent
with live data.

A sync resolves the partitions of a root collection, fetches all of them concurrently
through a Fetcher and merges the fresh records into the cached collection, keyed by
record identity. Fresh records always replace cached ones with the same identity, so the
merged collection never contains an identity twice. The merged collection is written back
before the result is sorted and filtered, so the cache always holds everything known,
not just the current page.

A failing or panicking fetcher only makes the result smaller, it never fails the call.
Partition failures and resolve errors are reported through Result.
*/
package mergesync
