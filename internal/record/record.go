// Package record defines the in-memory representation of an extracted
// entity row and the canonical serialization used for content identity.
//
// A Record is a plain field-value map as delivered by the extraction
// collaborator. Values are restricted to the scalar types the warehouse
// columns can hold: string, int64, float64, bool, and nil (absent/NULL).
package record

import (
	"fmt"
	"sort"
	"strings"
)

// Record is one extracted entity row, keyed by column name.
type Record map[string]any

// Separator between business-key components. A unit separator cannot
// appear in upstream identifiers, so joined tuples are unambiguous.
const keySep = "\x1f"

// Clone returns a shallow copy. Values are scalars, so a shallow copy
// is a full copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Fields returns the record's field names in sorted order.
func (r Record) Fields() []string {
	fields := make([]string, 0, len(r))
	for k := range r {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// String returns the value of field as a string.
// Returns "" and false if the field is absent, nil, or not a string.
func (r Record) String(field string) (string, bool) {
	s, ok := r[field].(string)
	return s, ok
}

// Key returns the record's value for a key field rendered as a string.
// Keys assigned by the upstream source are strings, but temporal fields
// (week numbers) and draft pick numbers arrive as integers, so numeric
// values are rendered too. Returns an error for absent or nil values:
// a missing key field is a data defect the caller must surface.
func (r Record) Key(field string) (string, error) {
	v, ok := r[field]
	if !ok || v == nil {
		return "", fmt.Errorf("record has no value for key field %q", field)
	}
	s, err := formatScalar(v)
	if err != nil {
		return "", fmt.Errorf("key field %q: %w", field, err)
	}
	return s, nil
}

// CompositeKey renders the ordered field tuple as a single string, for
// grouping records by business key. Missing or nil components are
// errors, never silently skipped.
func (r Record) CompositeKey(fields []string) (string, error) {
	parts := make([]string, len(fields))
	for i, f := range fields {
		part, err := r.Key(f)
		if err != nil {
			return "", err
		}
		parts[i] = part
	}
	return strings.Join(parts, keySep), nil
}

// Equal reports whether two records hold identical field sets and
// values. Used by append-only tests to assert persisted rows were not
// altered.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		ov, ok := other[k]
		if !ok || v != ov {
			return false
		}
	}
	return true
}

// Without returns a copy of the record with the given fields removed.
// Used to strip volatile auditing fields before content hashing.
func (r Record) Without(fields []string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}
