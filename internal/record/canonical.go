package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces deterministic JSON for content hashing.
//
// Rules:
//  1. Object keys sorted bytewise (column names are ASCII).
//  2. Strings NFC normalized, no HTML escaping.
//  3. Floats formatted with strconv shortest representation; NaN and
//     infinities are errors since they have no JSON form.
//  4. nil serializes as null (optional columns are common in this data).
//
// Two records with the same fields and values always produce the same
// bytes, which is the property the exact-duplicate check relies on.
func MarshalCanonical(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := r.Fields()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := canonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := canonicalScalar(r[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func canonicalScalar(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return canonicalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return strconv.AppendInt(nil, int64(val), 10), nil
	case int64:
		return strconv.AppendInt(nil, val, 10), nil
	case float64:
		return canonicalFloat(val)
	case json.Number:
		return []byte(val.String()), nil
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// canonicalFloat formats a float deterministically. Integral values
// render without an exponent or fraction so that 6.0 and int64(6)
// hash identically; extraction runs are not consistent about which
// they deliver for whole-number scores.
func canonicalFloat(f float64) ([]byte, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v has no JSON form", f)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.AppendInt(nil, int64(f), 10), nil
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64), nil
}

// canonicalString produces a JSON string with NFC normalization and no
// HTML escaping. Manager and player names arrive in whatever Unicode
// form the upstream API felt like that day; NFC at the hashing boundary
// keeps logically identical names from producing distinct hashes.
func canonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}

// formatScalar renders a scalar value for key tuple construction.
// Unlike canonicalScalar this is not JSON: strings are used verbatim
// so that key tuples read naturally in violation reports.
func formatScalar(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		b, err := canonicalFloat(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case json.Number:
		return val.String(), nil
	default:
		return "", fmt.Errorf("unsupported scalar type %T", v)
	}
}

// SortKeys sorts a slice of rendered key strings in place and returns
// it. Violation reports and plan summaries use this for deterministic
// output.
func SortKeys(keys []string) []string {
	sort.Strings(keys)
	return keys
}
