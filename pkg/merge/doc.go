/*
Package merge implements the three-way record merge at the heart of entsync.

Given three snapshots of the same flat record, local (what the machine says
now), base (what we last synchronized) and remote (what the server holds),
Merge produces a single reconciled record and streams a DiffChange for every
key whose outcome differs from base.

# Algorithm

For each key in the union of the three snapshots:

  - neither side changed relative to base: the base value carries forward
    unchanged (or the key stays absent if base lacks it)
  - only remote changed: remote's value wins
  - only local changed: local's value wins
  - both changed: the ConflictPolicy picks the winner; if the winning side
    does not hold the key, it is omitted from the result

"Changed" is evaluated asymmetrically on purpose. The entitlement server
never reports an intentionally cleared field: absence from the remote
snapshot means the server does not support or did not return the field, so
it never counts as a change. Absence from the local snapshot, however, is an
explicit user unset and does count. Do not symmetrize this without
confirming the remote protocol can express deletion.

# Properties

Merge is deterministic, order-independent over keys, and idempotent:
merging a result against itself as base with an unchanged remote is a
no-op. If local, base and remote are identical, the result equals base and
no DiffChange is emitted. An invalid policy returns an error; the merge
never silently defaults a conflict rule.
*/
package merge
