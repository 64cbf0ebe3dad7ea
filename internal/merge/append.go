package merge

import (
	"fmt"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// PlanAppendOnly builds the plan for immutable-event entities
// (transactions, draft picks). Records whose primary key already
// exists in the baseline are skipped — counted, never an error, and
// never rewritten even when the incoming copy's fields differ. Only
// new events are inserted.
//
// Once the store holds an event, repeated batches add zero rows.
func PlanAppendOnly(schema registry.Schema, recs []record.Record, baseline map[string]record.Record) (Plan, error) {
	plan := Plan{EntityType: schema.Type, Class: schema.Class}

	for i, rec := range recs {
		pk, err := rec.Key(schema.PrimaryKey)
		if err != nil {
			return Plan{}, fmt.Errorf("%s[%d]: %w", schema.Type, i, err)
		}
		if _, exists := baseline[pk]; exists {
			plan.SkippedKeys = append(plan.SkippedKeys, pk)
			continue
		}
		plan.Inserts = append(plan.Inserts, rec)
	}

	record.SortKeys(plan.SkippedKeys)
	return plan, nil
}
