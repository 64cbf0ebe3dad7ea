package merge

import (
	"fmt"
	"sort"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// PlanWindowReplace builds the plan for time-sliced entities (rosters,
// matchups): delete every persisted row in each temporal scope the
// batch carries data for, then insert the batch's rows. Scopes the
// batch does not mention are never deleted — week 3 stays intact when
// the batch only brings week 4.
//
// Delete-then-insert is inherently idempotent per scope: re-applying
// the same batch reproduces the identical final state.
func PlanWindowReplace(schema registry.Schema, recs []record.Record) (Plan, error) {
	plan := Plan{EntityType: schema.Type, Class: schema.Class}

	seen := make(map[string]bool)
	for i, rec := range recs {
		v, ok := rec[schema.TemporalField]
		if !ok || v == nil {
			return Plan{}, fmt.Errorf("%s[%d]: record has no %s value", schema.Type, i, schema.TemporalField)
		}
		key, err := rec.Key(schema.TemporalField)
		if err != nil {
			return Plan{}, fmt.Errorf("%s[%d]: %w", schema.Type, i, err)
		}
		if !seen[key] {
			seen[key] = true
			plan.DeleteScopes = append(plan.DeleteScopes, Scope{Value: v, Key: key})
		}
	}

	sort.Slice(plan.DeleteScopes, func(i, j int) bool {
		return plan.DeleteScopes[i].Key < plan.DeleteScopes[j].Key
	})

	plan.Inserts = recs
	return plan, nil
}
