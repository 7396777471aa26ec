/*
Package store persists a flat record as a JSON file and provides the point
mutations the CLI and sync session apply to it.

A Store owns exactly one file (for example the system purpose file or its
last-synchronized cache twin). Load tolerates an absent or empty file,
since both mean "no prior record", but refuses to parse past garbage: non-empty
malformed content surfaces as *MalformedDataError so a corrupted file full
of user edits is never silently replaced.

# Mutation semantics

Every mutator reports whether it changed the record, and the Store tracks a
dirty flag so callers can flush only when something actually moved:

	st, err := store.Load("/etc/entsync/syspurpose.json")
	...
	st.Set(store.KeyRole, "server")
	st.Add(store.KeyAddons, "addon-1")
	if st.Dirty() {
		err = st.Save()
	}

Add promotes an existing scalar to a one-element list before appending and
refuses duplicates. Remove on a scalar equal to the value degrades to
Unset. Unset removes the key, except for two attributes where the server
distinguishes "configured empty" from "absent": service_level_agreement is
set to "" and addons to an empty list, both staying present.

# Durability

Save replaces the whole file through a temp-file-plus-rename in the target
directory, so concurrent readers observe either the old or the new complete
content. There is no locking; callers must serialize writers on the same
path.
*/
package store
