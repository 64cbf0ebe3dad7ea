package coordinator

import (
	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/registry"
)

// Status is the coordinator's phase for one batch. Phases advance
// strictly in order; Committed and RolledBack are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusApplying   Status = "applying"
	StatusVerifying  Status = "verifying"
	StatusCommitted  Status = "committed"
	StatusRolledBack Status = "rolled-back"
)

// EntityResult is one entity type's write counts within a batch.
type EntityResult struct {
	EntityType registry.EntityType `json:"entity_type"`
	Inserted   int                 `json:"inserted"`
	Updated    int                 `json:"updated"`
	Deleted    int                 `json:"deleted"`
	Skipped    int                 `json:"skipped"`
}

// Summary is the coordinator's full account of one batch apply. It is
// produced for every outcome: a committed summary carries the final
// counts, a rolled-back summary carries whatever phase was reached and
// the violations or error that stopped it.
type Summary struct {
	BatchID string `json:"batch_id"`
	Status  Status `json:"status"`

	// Entities lists per-type results in apply order. For rolled-back
	// batches the counts describe work that was undone with the
	// transaction, kept for diagnostics.
	Entities []EntityResult `json:"entities,omitempty"`

	// Violations carries every detector finding for the batch,
	// informational ones included.
	Violations []dupcheck.Violation `json:"violations,omitempty"`

	// Error is the failure description for rolled-back batches.
	Error string `json:"error,omitempty"`
}

// Inserted returns the total rows inserted across entity types.
func (s *Summary) Inserted() int {
	n := 0
	for _, e := range s.Entities {
		n += e.Inserted
	}
	return n
}

// Committed reports whether the batch reached the terminal success
// state.
func (s *Summary) Committed() bool {
	return s.Status == StatusCommitted
}
