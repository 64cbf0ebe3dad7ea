// Package batch defines the transient envelope one extraction run
// delivers to the merge engine: per-entity-type record slices plus
// batch metadata. The store is the durable owner of entity state; a
// batch is disposable once its apply summary is produced.
package batch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Batch is one extraction run's full set of new/changed records.
type Batch struct {
	// ID correlates the batch across logs, metrics, and the apply
	// summary. Assigned here if the extractor did not provide one.
	ID string

	// ExtractedAt is the extraction timestamp hint from the envelope,
	// verbatim. Informational only; it never drives merge decisions.
	ExtractedAt string

	// Records holds the batch's rows grouped by entity type.
	Records map[registry.EntityType][]record.Record
}

// New creates an empty batch with a fresh UUID.
func New() *Batch {
	return &Batch{
		ID:      uuid.NewString(),
		Records: make(map[registry.EntityType][]record.Record),
	}
}

// Types returns the entity types present in the batch (with at least
// one record), in registry apply order. Types the registry does not
// know are appended last so Validate can report them.
func (b *Batch) Types(reg *registry.Registry) []registry.EntityType {
	var out []registry.EntityType
	seen := make(map[registry.EntityType]bool)
	for _, et := range reg.ApplyOrder() {
		if len(b.Records[et]) > 0 {
			out = append(out, et)
			seen[et] = true
		}
	}
	for et, recs := range b.Records {
		if len(recs) > 0 && !seen[et] {
			out = append(out, et)
		}
	}
	return out
}

// Total returns the number of records across all entity types.
func (b *Batch) Total() int {
	n := 0
	for _, recs := range b.Records {
		n += len(recs)
	}
	return n
}

// Validate checks the batch against the registry: every entity type
// must be registered and every record field must be a declared column.
// Nothing is dropped or coerced away silently; the first defect aborts
// with full detail.
func (b *Batch) Validate(reg *registry.Registry) error {
	for _, et := range b.Types(reg) {
		schema, err := reg.Describe(et)
		if err != nil {
			return err
		}
		for i, rec := range b.Records[et] {
			for _, f := range rec.Fields() {
				if !schema.HasField(f) {
					return fmt.Errorf("%s[%d]: field %q is not declared in the registry", et, i, f)
				}
			}
		}
	}
	return nil
}
