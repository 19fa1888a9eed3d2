/*
Package remote contains the collaborators that connect a cache session to the remote
document store.

The Client speaks a small JSON over HTTP protocol:

	GET /partitions/{root}                  -> ["ebay", "depop", ...]
	GET /records/{root}/{partition}?uid=... -> [{"kind": "order", ...}, ...]

Every request carries the user's token as bearer token. Record requests take the date
window (from, to in RFC 3339), the filter key, the pagination state (paginate, next,
cursor), refresh and the search terms (q, fields) as query parameters.

StaticToken and StaticAccounts provide the token and the connected accounts from
configuration, which is what the command line client uses.
*/
package remote
