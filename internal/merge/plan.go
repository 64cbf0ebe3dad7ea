// Package merge builds operation plans for one entity type's slice of
// a batch. Planners are pure functions over in-memory structures: they
// consult the baseline the caller loaded, produce a Plan, and never
// touch the store. The store executes plans; the coordinator owns the
// transaction around them.
package merge

import (
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Plan is the full set of write operations for one entity type within
// one batch. Exactly which fields are populated depends on the
// mutability class.
type Plan struct {
	EntityType registry.EntityType
	Class      registry.Class

	// Inserts are full records to insert, in batch order.
	Inserts []record.Record

	// Updates are field-limited rewrites of existing rows.
	// Upsert plans only.
	Updates []Update

	// DeleteScopes are the temporal scope values whose persisted rows
	// are replaced wholesale. Window-replace plans only. Scopes absent
	// from the batch never appear here.
	DeleteScopes []Scope

	// SkippedKeys are primary keys left untouched: already-persisted
	// immutable events, or upserts whose updatable fields already
	// match the baseline. Sorted.
	SkippedKeys []string
}

// Update rewrites the declared updatable fields of one persisted row.
type Update struct {
	// Key is the row's primary key value.
	Key string

	// Fields holds the new values, restricted to the registry's
	// updatable fields that the incoming record actually carried.
	Fields map[string]any
}

// Scope is one temporal slice eligible for replacement.
type Scope struct {
	// Value is the raw scope value as it appears in records, used in
	// SQL parameters.
	Value any

	// Key is the rendered form, used for ordering and reporting.
	Key string
}

// Empty reports whether the plan performs no writes at all.
func (p Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Updates) == 0 && len(p.DeleteScopes) == 0
}
