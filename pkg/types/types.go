package types

// Record is a flat attribute set for one resource: string keys mapped to
// scalar values (string/number/bool/nil) or lists of scalars. Key order is
// irrelevant.
type Record map[string]interface{}

// Provenance identifies which copy of a record a snapshot came from.
type Provenance string

const (
	ProvenanceLocal  Provenance = "local"
	ProvenanceCached Provenance = "cached"
	ProvenanceRemote Provenance = "remote"
)

// Snapshot is an immutable record captured at a point in time, tagged with
// where it came from.
type Snapshot struct {
	Source Provenance
	Data   Record
}

// Clone returns a deep copy of the record. List values are copied, never
// aliased, so mutating the clone cannot leak into the original.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = CloneValue(v)
	}
	return out
}

// Has reports whether the key is present, regardless of its value.
func (r Record) Has(key string) bool {
	_, ok := r[key]
	return ok
}

// Equal reports whether two records hold the same keys and values after
// JSON normalization.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || !ValueEqual(v, ov) {
			return false
		}
	}
	return true
}

// CloneValue deep-copies a record value.
func CloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(val))
		copy(out, val)
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return v
	}
}

// ValueEqual compares two record values through JSON normalization. A value
// decoded by encoding/json (float64, []interface{}) compares equal to its
// in-memory counterpart (int, []string), which matters when a freshly
// collected payload is checked against a cache entry read back from disk.
func ValueEqual(a, b interface{}) bool {
	na, nb := NormalizeValue(a), NormalizeValue(b)

	la, aIsList := na.([]interface{})
	lb, bIsList := nb.([]interface{})
	if aIsList != bIsList {
		return false
	}
	if aIsList {
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !ValueEqual(la[i], lb[i]) {
				return false
			}
		}
		return true
	}

	ma, aIsMap := na.(map[string]interface{})
	mb, bIsMap := nb.(map[string]interface{})
	if aIsMap != bIsMap {
		return false
	}
	if aIsMap {
		return Record(ma).Equal(Record(mb))
	}

	return na == nb
}

// NormalizeValue maps a value onto the shape encoding/json would decode it
// to: numeric types become float64, string slices become []interface{},
// Records become plain maps.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = NormalizeValue(e)
		}
		return out
	case Record:
		return map[string]interface{}(val)
	default:
		return v
	}
}

// IsList reports whether a record value is a list.
func IsList(v interface{}) bool {
	switch v.(type) {
	case []interface{}, []string:
		return true
	}
	return false
}

// ToList coerces a record value into a list of values. A nil value yields
// an empty list; a scalar is promoted to a one-element list.
func ToList(v interface{}) []interface{} {
	switch val := v.(type) {
	case nil:
		return []interface{}{}
	case []interface{}:
		return val
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		return []interface{}{val}
	}
}
