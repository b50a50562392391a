package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Snapshot is a JSON-shaped field map of a record at one point in time.
// Keys are the record's JSON field names. A key mapped to nil means the
// field was unset.
type Snapshot map[string]any

// Patch is a partial record update keyed by JSON field name. A nil value
// clears the field; absent keys are left unchanged.
type Patch map[string]any

// SnapshotOf captures every field of v.
func SnapshotOf(v any) (Snapshot, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return decodeObject(raw)
}

// Pick returns a snapshot restricted to the given fields. Fields that are
// absent in s are present in the result with a nil value so that applying
// the result as a patch restores "unset".
func (s Snapshot) Pick(fields ...string) Snapshot {
	out := make(Snapshot, len(fields))
	for _, f := range fields {
		out[f] = s[f]
	}
	return out
}

// Patch converts the snapshot into a patch carrying the same values.
func (s Snapshot) Patch() Patch {
	p := make(Patch, len(s))
	for k, v := range s {
		p[k] = v
	}
	return p
}

// Keys returns the snapshot's field names in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns the patch's field names in sorted order.
func (p Patch) Keys() []string {
	return Snapshot(p).Keys()
}

// ApplyPatch merges p over rec and returns the new version. rec itself is
// not modified.
func ApplyPatch[T any](rec T, p Patch) (T, error) {
	var out T

	raw, err := json.Marshal(rec)
	if err != nil {
		return out, fmt.Errorf("apply patch: encode record: %w", err)
	}
	fields, err := decodeObject(raw)
	if err != nil {
		return out, fmt.Errorf("apply patch: %w", err)
	}

	for k, v := range p {
		if v == nil {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("apply patch: encode merged: %w", err)
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		return out, fmt.Errorf("apply patch: decode merged: %w", err)
	}
	return out, nil
}

// decodeObject parses a JSON object keeping numbers as json.Number to avoid
// float64 precision loss.
func decodeObject(raw []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m Snapshot
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if m == nil {
		m = Snapshot{}
	}
	return m, nil
}
