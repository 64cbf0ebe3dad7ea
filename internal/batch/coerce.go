package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field typing recovered from two decades of messy upstream payloads.
// The extraction API is not consistent about numeric representation
// (10 vs 10.0 vs "10") or booleans (true vs 1), so declared fields are
// normalized at the batch boundary rather than at every consumer.

// integerFields always coerce to int64.
var integerFields = map[string]bool{
	"wins": true, "losses": true, "ties": true,
	"week": true, "num_teams": true, "current_week": true,
	"start_week": true, "end_week": true, "game_id": true,
	"playoff_seed": true, "waiver_priority": true,
	"pick_number": true, "round_number": true,
}

// floatFields always coerce to float64.
var floatFields = map[string]bool{
	"points_for": true, "points_against": true,
	"team1_score": true, "team2_score": true,
	"faab_bid": true, "faab_balance": true,
	"projected_points": true, "actual_points": true,
	"cost": true,
}

// booleanFields accept bool or 0/1.
var booleanFields = map[string]bool{
	"is_pro_league": true, "is_cash_league": true,
	"is_starter": true, "is_playoffs": true,
	"is_championship": true, "is_consolation": true,
	"is_keeper": true, "is_auction_draft": true,
}

// IsIntegerField reports whether the named field is declared integer.
func IsIntegerField(name string) bool { return integerFields[name] }

// IsFloatField reports whether the named field is declared float.
func IsFloatField(name string) bool { return floatFields[name] }

// IsBooleanField reports whether the named field is declared boolean.
func IsBooleanField(name string) bool { return booleanFields[name] }

// coerceValue normalizes a decoded JSON value for the named field.
// Datetime fields (extracted_at, timestamp) stay as strings; the store
// persists them as TEXT.
func coerceValue(field string, v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return coerceString(field, val)
	case bool:
		return val, nil
	case json.Number:
		return coerceNumber(field, val)
	default:
		return nil, fmt.Errorf("unsupported JSON value type %T", v)
	}
}

func coerceString(field, s string) (any, error) {
	// Numeric fields occasionally arrive as strings ("37").
	if integerFields[field] || floatFields[field] {
		if s == "" {
			return nil, nil
		}
		return coerceNumber(field, json.Number(s))
	}
	return s, nil
}

func coerceNumber(field string, n json.Number) (any, error) {
	if booleanFields[field] {
		i, err := n.Int64()
		if err != nil || (i != 0 && i != 1) {
			return nil, fmt.Errorf("boolean field got %q", n.String())
		}
		return i == 1, nil
	}
	if floatFields[field] {
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("float field got %q", n.String())
		}
		return f, nil
	}
	if integerFields[field] {
		// Tolerate "6.0" for integer fields.
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != float64(int64(f)) {
			return nil, fmt.Errorf("integer field got %q", n.String())
		}
		return int64(f), nil
	}
	// Undeclared numeric field: preserve integer-ness when possible.
	if !strings.ContainsAny(n.String(), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("unparseable number %q", n.String())
	}
	return f, nil
}
