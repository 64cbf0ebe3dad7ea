// Package coordinator drives one batch through the apply state
// machine: Pending → Validating → Applying → Verifying → Committed or
// RolledBack. All store writes for a batch happen inside a single
// transaction; any failure past Validating rolls the whole batch back.
package coordinator

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/leaguevault/leaguevault/internal/batch"
	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/merge"
	"github.com/leaguevault/leaguevault/internal/metrics"
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
	"github.com/leaguevault/leaguevault/internal/store"
)

// DefaultApplyTimeout bounds the Applying and Verifying phases of one
// batch. Validation is in-memory and not covered.
const DefaultApplyTimeout = 5 * time.Minute

// Coordinator applies batches to the store, one at a time.
//
// Thread-safety model:
//   - Apply(): safe to call from any goroutine; a second concurrent
//     call returns ErrBusy rather than interleaving writes.
//   - The store's single connection makes the guard belt-and-braces,
//     but the guard fails fast instead of serializing on SQLite locks.
type Coordinator struct {
	store   *store.Store
	reg     *registry.Registry
	timeout time.Duration
	metrics *metrics.Metrics

	inFlight atomic.Bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout overrides the apply timeout. Zero or negative disables
// the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a Coordinator over an open store and compiled registry.
func New(s *store.Store, reg *registry.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   s,
		reg:     reg,
		timeout: DefaultApplyTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply drives one batch through the full state machine and returns
// its summary. The summary is non-nil for every outcome except ErrBusy
// and carries the terminal status; the error classifies the failure
// when the status is RolledBack.
//
// Replay-safe: applying the same batch twice leaves the store
// byte-identical to applying it once.
func (c *Coordinator) Apply(ctx context.Context, b *batch.Batch) (*Summary, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.inFlight.Store(false)

	start := time.Now()
	summary := &Summary{BatchID: b.ID, Status: StatusPending}

	slog.Info("batch apply starting",
		"batch_id", b.ID,
		"entity_types", len(b.Types(c.reg)),
		"records", b.Total(),
	)

	// Validating: structural checks and the batch-side detector, all
	// in-memory. Nothing has touched the store yet, so rejection here
	// is mutation-free by construction.
	summary.Status = StatusValidating
	report, err := c.validate(b)
	summary.Violations = report.Violations
	c.metrics.ViolationsFound(report)
	if err != nil {
		return c.rollback(summary, start, err)
	}

	applyCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	// Applying: one transaction for the whole batch, entity types in
	// registry dependency order.
	summary.Status = StatusApplying
	tx, err := c.store.Begin(applyCtx)
	if err != nil {
		return c.rollback(summary, start, newApplyError(b.ID, "", fmt.Errorf("begin transaction: %w", err)))
	}
	defer tx.Rollback()

	touched := b.Types(c.reg)
	for _, et := range touched {
		res, err := c.applyEntity(applyCtx, tx, et, b.Records[et])
		summary.Entities = append(summary.Entities, EntityResult{
			EntityType: et,
			Inserted:   res.Inserted,
			Updated:    res.Updated,
			Deleted:    res.Deleted,
			Skipped:    res.Skipped,
		})
		if err != nil {
			return c.rollback(summary, start, newApplyError(b.ID, et, err))
		}
		slog.Debug("entity type applied",
			"batch_id", b.ID,
			"entity_type", et,
			"inserted", res.Inserted,
			"updated", res.Updated,
			"deleted", res.Deleted,
			"skipped", res.Skipped,
		)
	}

	// Verifying: the store-side detector runs inside the uncommitted
	// transaction, scoped to the touched types, so the verdict covers
	// exactly the state about to become durable.
	summary.Status = StatusVerifying
	storeReport, err := dupcheck.CheckStore(applyCtx, tx, c.reg, touched)
	if err != nil {
		return c.rollback(summary, start, newApplyError(b.ID, "", fmt.Errorf("store check: %w", err)))
	}
	if storeReport.HasSeverity(dupcheck.SeverityCritical) {
		summary.Violations = append(summary.Violations, storeReport.Violations...)
		c.metrics.ViolationsFound(storeReport)
		return c.rollback(summary, start, newIntegrityError(b.ID, storeReport))
	}

	if err := tx.Commit(); err != nil {
		return c.rollback(summary, start, newApplyError(b.ID, "", fmt.Errorf("commit: %w", err)))
	}

	summary.Status = StatusCommitted
	c.observe(summary, metrics.OutcomeCommitted, time.Since(start))
	slog.Info("batch committed",
		"batch_id", b.ID,
		"inserted", summary.Inserted(),
		"duration", time.Since(start),
	)
	return summary, nil
}

// validate runs the structural batch checks and the batch-side
// duplicate detector. The report is returned even on error so the
// summary can carry partial findings.
func (c *Coordinator) validate(b *batch.Batch) (dupcheck.Report, error) {
	if err := b.Validate(c.reg); err != nil {
		return dupcheck.Report{}, newValidationError(b.ID, err.Error(), dupcheck.Report{}, err)
	}

	report, err := dupcheck.CheckBatch(c.reg, b)
	if err != nil {
		// A record missing a key field cannot be merged at all.
		return dupcheck.Report{}, newValidationError(b.ID, err.Error(), dupcheck.Report{}, err)
	}
	if report.HasSeverity(dupcheck.SeverityHigh) {
		return report, newValidationError(b.ID, "batch contains duplicate-key violations", report, nil)
	}
	return report, nil
}

// applyEntity plans and executes one entity type's slice of the batch
// through the open transaction.
func (c *Coordinator) applyEntity(ctx context.Context, tx *sql.Tx, et registry.EntityType, recs []record.Record) (store.Result, error) {
	schema, err := c.reg.Describe(et)
	if err != nil {
		return store.Result{}, err
	}

	baseline, err := c.loadBaseline(ctx, tx, schema, recs)
	if err != nil {
		return store.Result{}, err
	}

	plan, err := merge.Dispatch(schema, recs, baseline)
	if err != nil {
		return store.Result{}, err
	}

	res, err := c.store.ExecutePlan(ctx, tx, schema, plan)
	if err != nil {
		return res, err
	}

	c.metrics.RowsApplied(et, metrics.OpInserted, res.Inserted)
	c.metrics.RowsApplied(et, metrics.OpUpdated, res.Updated)
	c.metrics.RowsApplied(et, metrics.OpDeleted, res.Deleted)
	c.metrics.RowsApplied(et, metrics.OpSkipped, res.Skipped)
	return res, nil
}

// loadBaseline reads the persisted records the planner needs through
// the open transaction. Time-sliced types need none: scope deletion
// makes prior state irrelevant.
func (c *Coordinator) loadBaseline(ctx context.Context, tx *sql.Tx, schema registry.Schema, recs []record.Record) (map[string]record.Record, error) {
	if schema.Class == registry.TimeSliced {
		return nil, nil
	}

	keys := make([]string, 0, len(recs))
	for i, rec := range recs {
		pk, err := rec.Key(schema.PrimaryKey)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", schema.Type, i, err)
		}
		keys = append(keys, pk)
	}
	return c.store.BaselineByKeys(ctx, tx, schema, keys)
}

// rollback finalizes a failed apply. The deferred tx.Rollback (when a
// transaction was open) has already undone every write; this records
// the terminal state.
func (c *Coordinator) rollback(summary *Summary, start time.Time, err error) (*Summary, error) {
	summary.Status = StatusRolledBack
	summary.Error = err.Error()
	c.observe(summary, metrics.OutcomeRolledBack, time.Since(start))
	slog.Warn("batch rolled back",
		"batch_id", summary.BatchID,
		"error", err,
	)
	return summary, err
}

func (c *Coordinator) observe(summary *Summary, outcome string, d time.Duration) {
	c.metrics.BatchFinished(outcome, d)
}
