package merge

import (
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Dispatch routes one entity type's records to the planner for its
// mutability class. The baseline map is keyed by rendered primary key;
// window-replace ignores it (scope deletion makes prior state
// irrelevant).
//
// An unknown class can only arise from a registry defect and is
// returned as a ConfigurationError.
func Dispatch(schema registry.Schema, recs []record.Record, baseline map[string]record.Record) (Plan, error) {
	switch schema.Class {
	case registry.MutableReference:
		return PlanUpsert(schema, recs, baseline)
	case registry.TimeSliced:
		return PlanWindowReplace(schema, recs)
	case registry.ImmutableEvent:
		return PlanAppendOnly(schema, recs, baseline)
	default:
		return Plan{}, &registry.ConfigurationError{
			EntityType: schema.Type,
			Detail:     "no executor for mutability class " + string(schema.Class),
		}
	}
}
