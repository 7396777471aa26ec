package merge

import (
	"fmt"

	"github.com/entsync/entsync/pkg/types"
)

// ConflictPolicy decides which side wins when local and remote both changed
// the same key since the base snapshot.
type ConflictPolicy string

const (
	PreferRemote ConflictPolicy = "remote"
	PreferLocal  ConflictPolicy = "local"
)

// Source identifies which side's value was chosen for a key.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
	SourceBase   Source = "base"
)

// DiffChange describes one key whose merged outcome differs from the base
// snapshot. Emitted at most once per key.
type DiffChange struct {
	Key           string
	PreviousValue interface{}
	NewValue      interface{}
	Source        Source
	InBase        bool
	InResult      bool
}

// ChangeFunc receives each DiffChange as the merge detects it.
type ChangeFunc func(DiffChange)

// Merge reconciles three snapshots of a record: the current local values,
// the base we last synchronized, and the remote server-held values. It is a
// total, deterministic function: every key in the union of the three inputs
// resolves to at most one value, and re-running with the same inputs yields
// the same output.
//
// Change detection is deliberately asymmetric. A key absent from remote is
// never treated as a change, because the server cannot distinguish "field
// not returned" from "field intentionally cleared". A key absent from local
// but present in base IS a change: local absence is an explicit unset.
//
// An unrecognized policy is a configuration error and fails immediately.
func Merge(local, base, remote types.Record, policy ConflictPolicy, onChange ChangeFunc) (types.Record, error) {
	if local == nil {
		local = types.Record{}
	}
	if base == nil {
		base = types.Record{}
	}
	if remote == nil {
		remote = types.Record{}
	}

	var winner types.Record
	var winnerSource Source
	switch policy {
	case PreferRemote:
		winner, winnerSource = remote, SourceRemote
	case PreferLocal:
		winner, winnerSource = local, SourceLocal
	default:
		return nil, fmt.Errorf("merge: conflict policy must be %q or %q, got %q", PreferRemote, PreferLocal, policy)
	}

	result := types.Record{}

	for key := range allKeys(local, base, remote) {
		localChanged := detectChanged(base, local, key, SourceLocal)
		remoteChanged := detectChanged(base, remote, key, SourceRemote)

		var source Source
		switch {
		case !localChanged && !remoteChanged:
			// Unmodified carry-forward from base.
			source = SourceBase
			if v, ok := base[key]; ok {
				result[key] = types.CloneValue(v)
			}
		case localChanged && remoteChanged:
			source = winnerSource
			if v, ok := winner[key]; ok {
				result[key] = types.CloneValue(v)
			}
		case remoteChanged:
			source = SourceRemote
			if v, ok := remote[key]; ok {
				result[key] = types.CloneValue(v)
			}
		default:
			source = SourceLocal
			if v, ok := local[key]; ok {
				result[key] = types.CloneValue(v)
			}
		}

		baseVal, inBase := base[key]
		resVal, inResult := result[key]
		if onChange != nil && (inBase != inResult || (inResult && !types.ValueEqual(baseVal, resVal))) {
			onChange(DiffChange{
				Key:           key,
				PreviousValue: baseVal,
				NewValue:      resVal,
				Source:        source,
				InBase:        inBase,
				InResult:      inResult,
			})
		}
	}

	return result, nil
}

// detectChanged reports whether other diverged from base at key. Absence
// from the remote side is never a change; absence from the local side is.
func detectChanged(base, other types.Record, key string, source Source) bool {
	if !other.Has(key) && source != SourceLocal {
		return false
	}
	return !types.ValueEqual(base[key], other[key])
}

func allKeys(records ...types.Record) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			keys[k] = struct{}{}
		}
	}
	return keys
}
