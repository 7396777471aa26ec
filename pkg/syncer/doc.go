/*
Package syncer reconciles the user-edited system purpose record with the
copy the entitlement server holds.

A Session owns three views of the same record: the local store the user
edits, the cache store holding the snapshot from the last successful sync,
and the server's current record. One Sync cycle fetches the server record,
runs a three-way merge against the two snapshots, persists the merged
result to both stores, and pushes it back when the server's copy is behind.
The cache snapshot is the merge base; it only advances once the server has
accepted (or never needed) the merged result.

Conflicts where both sides moved since the last sync resolve by policy,
prefer-remote by default. Server unavailability is not an error: an
unreachable or incapable server degrades the cycle to a local merge and the
push waits for the next opportunity. Authentication failures and structured
server errors are surfaced unmodified.

Sessions follow a scoped-resource discipline: mutate through Set, Unset,
Add and Remove, then Close to flush. Close runs at most one final cycle and
only when something actually changed.
*/
package syncer
