/*
Package types defines the shared value model for entsync.

A Record is the unit of synchronization everywhere in the system: a flat
mapping from string keys to JSON-serializable scalars or lists of scalars.
The three copies the agent reconciles (local, cached, remote) are all
Records; snapshots tag a Record with its Provenance.

# Value normalization

Records cross the encoding/json boundary constantly: collected in memory,
written to cache files, read back, compared. encoding/json decodes every
number as float64 and every list as []interface{}, so a naive
reflect.DeepEqual between a live payload and its decoded cache entry reports
false changes. ValueEqual and NormalizeValue exist to make those comparisons
stable:

	types.ValueEqual([]string{"a", "b"}, []interface{}{"a", "b"}) // true
	types.ValueEqual(1, float64(1))                               // true

Change detection in the caches and the three-way merge rely on this; do not
replace it with reflect.DeepEqual.

# Ownership

Clone and CloneValue return deep copies. Any Record handed across a package
boundary that the receiver may mutate should be cloned first; the stores and
caches follow this rule when exposing their contents.
*/
package types
