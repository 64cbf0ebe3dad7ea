package merge

import (
	"fmt"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// PlanUpsert builds the plan for mutable-reference entities (leagues,
// teams). Records absent from the baseline are inserted whole. Records
// present in the baseline are updated on the registry's updatable
// fields only, so fields set once at creation (a season's start week,
// a manager's name) survive partial incremental payloads.
//
// Updates whose updatable values already equal the baseline are
// skipped rather than rewritten. The update is by-value, so applying
// the same batch twice converges: the second run plans zero updates.
func PlanUpsert(schema registry.Schema, recs []record.Record, baseline map[string]record.Record) (Plan, error) {
	plan := Plan{EntityType: schema.Type, Class: schema.Class}

	for i, rec := range recs {
		pk, err := rec.Key(schema.PrimaryKey)
		if err != nil {
			return Plan{}, fmt.Errorf("%s[%d]: %w", schema.Type, i, err)
		}

		base, exists := baseline[pk]
		if !exists {
			plan.Inserts = append(plan.Inserts, rec)
			continue
		}

		fields := make(map[string]any)
		changed := false
		for _, f := range schema.UpdatableFields {
			v, ok := rec[f]
			if !ok {
				// Partial payload: untouched fields stay as persisted.
				continue
			}
			fields[f] = v
			if !scalarEqual(base[f], v) {
				changed = true
			}
		}

		if !changed || len(fields) == 0 {
			plan.SkippedKeys = append(plan.SkippedKeys, pk)
			continue
		}
		plan.Updates = append(plan.Updates, Update{Key: pk, Fields: fields})
	}

	record.SortKeys(plan.SkippedKeys)
	return plan, nil
}

// scalarEqual compares two record values, treating integral floats and
// ints as equal the way the canonical serialization does.
func scalarEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return aok && bok && af == bf
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
