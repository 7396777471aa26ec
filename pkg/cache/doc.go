/*
Package cache implements the two caching disciplines the agent uses to keep
a machine and its server in agreement without talking to the server more
than necessary.

Push caches own locally-generated collections (package profiles, installed
products) and answer one question per run: has this collection changed
since it was last pushed? Each PushCache keeps a durable snapshot of the
payload it last sent; UpdateCheck deep-compares the current payload against
that snapshot and pushes the full collection only on drift, persisting the
new snapshot on success. An unregistered machine or an unsupported server
resource is a silent no-op. Push failures never retry and never leak
transport detail to the caller: structured server errors pass through
verbatim, everything else collapses into ErrUpdateFailed with the cause in
the log.

Pull caches mirror server-owned data (entitlement status, release, content
overrides) through a three-level read path:

	memory mirror -> remote fetch -> stale disk snapshot

A successful fetch refreshes the mirror and schedules a background snapshot
write. The disk snapshot is consulted only when the server is unreachable;
an authentication failure returns nothing rather than masking a credential
problem with stale data. Read returns nil when all levels come up empty,
and LastError says why.

Entry is the shared durable artifact: one JSON file, written atomically via
temp file and rename. Writer is a bounded worker pool that takes snapshot
writes off the request path; Flush is the explicit durability barrier and
Close drains it at shutdown.
*/
package cache
