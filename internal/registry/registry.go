// Package registry holds the static per-entity-type metadata driving
// the merge engine: primary keys, business keys, temporal scope fields,
// mutability classes, and column sets.
//
// The registry is defined in an embedded CUE file and compiled with the
// CUE SDK at process start. It is an explicit immutable value passed to
// the engine's constructor, not ambient state, so multiple engines
// (e.g. tests against throwaway stores) coexist safely.
package registry

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed entities.cue
var entitiesCUE []byte

// EntityType names one of the six logical record types.
type EntityType string

const (
	Leagues      EntityType = "leagues"
	Teams        EntityType = "teams"
	Rosters      EntityType = "rosters"
	Matchups     EntityType = "matchups"
	Transactions EntityType = "transactions"
	DraftPicks   EntityType = "draft_picks"
)

// Class is an entity type's mutability class, which selects its merge
// strategy.
type Class string

const (
	// MutableReference entities (leagues, teams) are upserted: new rows
	// inserted, existing rows updated on declared fields only.
	MutableReference Class = "mutable-reference"

	// TimeSliced entities (rosters, matchups) are window-replaced:
	// delete-then-insert per temporal scope value.
	TimeSliced Class = "time-sliced"

	// ImmutableEvent entities (transactions, draft picks) are
	// append-only: existing primary keys are skipped, never rewritten.
	ImmutableEvent Class = "immutable-event"
)

// Schema is one entity type's merge metadata.
type Schema struct {
	Type            EntityType
	PrimaryKey      string
	BusinessKey     []string
	TemporalField   string // empty unless Class == TimeSliced
	Class           Class
	UpdatableFields []string // empty unless Class == MutableReference
	Fields          []string // full column list, declaration order
	VolatileFields  []string // excluded from content hashing
}

// HasField reports whether the schema declares the given column.
func (s Schema) HasField(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Registry is the immutable set of entity schemas plus the fixed
// dependency order for applying a batch.
type Registry struct {
	schemas map[EntityType]Schema
	order   []EntityType
}

// cueSchema mirrors #Schema in entities.cue for decoding.
type cueSchema struct {
	PrimaryKey      string   `json:"primaryKey"`
	BusinessKey     []string `json:"businessKey"`
	Class           string   `json:"class"`
	TemporalField   string   `json:"temporalField"`
	UpdatableFields []string `json:"updatableFields"`
	Fields          []string `json:"fields"`
	VolatileFields  []string `json:"volatileFields"`
}

// Load compiles the embedded CUE registry and validates it. Any defect
// is a ConfigurationError: the process must not start with a partial or
// inconsistent registry.
func Load() (*Registry, error) {
	ctx := cuecontext.New()

	root := ctx.CompileBytes(entitiesCUE)
	if err := root.Err(); err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("compile registry: %v", err)}
	}
	if err := root.Validate(cue.Concrete(true)); err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("registry not concrete: %v", err)}
	}

	var order []EntityType
	orderVal := root.LookupPath(cue.ParsePath("applyOrder"))
	if !orderVal.Exists() {
		return nil, &ConfigurationError{Detail: "registry missing applyOrder"}
	}
	var orderStrs []string
	if err := orderVal.Decode(&orderStrs); err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("decode applyOrder: %v", err)}
	}
	for _, s := range orderStrs {
		order = append(order, EntityType(s))
	}

	entVal := root.LookupPath(cue.ParsePath("entities"))
	if !entVal.Exists() {
		return nil, &ConfigurationError{Detail: "registry missing entities"}
	}

	schemas := make(map[EntityType]Schema)
	iter, err := entVal.Fields()
	if err != nil {
		return nil, &ConfigurationError{Detail: fmt.Sprintf("iterate entities: %v", err)}
	}
	for iter.Next() {
		name := EntityType(iter.Selector().Unquoted())

		var cs cueSchema
		if err := iter.Value().Decode(&cs); err != nil {
			return nil, &ConfigurationError{
				EntityType: name,
				Detail:     fmt.Sprintf("decode schema: %v", err),
			}
		}

		schema := Schema{
			Type:            name,
			PrimaryKey:      cs.PrimaryKey,
			BusinessKey:     cs.BusinessKey,
			TemporalField:   cs.TemporalField,
			Class:           Class(cs.Class),
			UpdatableFields: cs.UpdatableFields,
			Fields:          cs.Fields,
			VolatileFields:  cs.VolatileFields,
		}
		if err := validateSchema(schema); err != nil {
			return nil, err
		}
		schemas[name] = schema
	}

	// applyOrder and entities must cover exactly the same set.
	if len(order) != len(schemas) {
		return nil, &ConfigurationError{
			Detail: fmt.Sprintf("applyOrder lists %d types, registry defines %d", len(order), len(schemas)),
		}
	}
	for _, t := range order {
		if _, ok := schemas[t]; !ok {
			return nil, &ConfigurationError{
				EntityType: t,
				Detail:     "applyOrder names an undefined entity type",
			}
		}
	}

	return &Registry{schemas: schemas, order: order}, nil
}

// validateSchema enforces the structural invariants CUE's type system
// cannot express across fields.
func validateSchema(s Schema) error {
	fail := func(format string, args ...any) error {
		return &ConfigurationError{EntityType: s.Type, Detail: fmt.Sprintf(format, args...)}
	}

	if !s.HasField(s.PrimaryKey) {
		return fail("primary key %q is not a declared field", s.PrimaryKey)
	}
	for _, f := range s.BusinessKey {
		if !s.HasField(f) {
			return fail("business key field %q is not a declared field", f)
		}
	}
	switch s.Class {
	case MutableReference:
		for _, f := range s.UpdatableFields {
			if !s.HasField(f) {
				return fail("updatable field %q is not a declared field", f)
			}
			if f == s.PrimaryKey {
				return fail("primary key %q must not be updatable", f)
			}
		}
	case TimeSliced:
		if !s.HasField(s.TemporalField) {
			return fail("temporal field %q is not a declared field", s.TemporalField)
		}
	case ImmutableEvent:
		// nothing extra
	default:
		return fail("unknown mutability class %q", s.Class)
	}
	for _, f := range s.VolatileFields {
		if !s.HasField(f) {
			return fail("volatile field %q is not a declared field", f)
		}
	}
	return nil
}

// Describe returns the schema for an entity type. An unregistered type
// is a ConfigurationError, not a skip: a batch naming an unknown type
// means the deployment is misconfigured.
func (r *Registry) Describe(t EntityType) (Schema, error) {
	s, ok := r.schemas[t]
	if !ok {
		return Schema{}, &ConfigurationError{EntityType: t, Detail: "entity type not registered"}
	}
	return s, nil
}

// ApplyOrder returns the fixed dependency order for applying entity
// types within one batch. The returned slice is a copy.
func (r *Registry) ApplyOrder() []EntityType {
	out := make([]EntityType, len(r.order))
	copy(out, r.order)
	return out
}

// Types returns all registered entity types in apply order.
func (r *Registry) Types() []EntityType {
	return r.ApplyOrder()
}
