package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaguevault/leaguevault/internal/batch"
	"github.com/leaguevault/leaguevault/internal/dupcheck"
	"github.com/leaguevault/leaguevault/internal/record"
	"github.com/leaguevault/leaguevault/internal/registry"
	"github.com/leaguevault/leaguevault/internal/store"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *store.Store, *registry.Registry) {
	t.Helper()

	reg, err := registry.Load()
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return New(s, reg), s, reg
}

func newBatch(id string, records map[registry.EntityType][]record.Record) *batch.Batch {
	b := batch.New()
	b.ID = id
	b.Records = records
	return b
}

func countOf(t *testing.T, s *store.Store, reg *registry.Registry, et registry.EntityType) int {
	t.Helper()
	schema, err := reg.Describe(et)
	require.NoError(t, err)
	n, err := s.Count(context.Background(), schema)
	require.NoError(t, err)
	return n
}

func firstSeason() map[registry.EntityType][]record.Record {
	return map[registry.EntityType][]record.Record{
		registry.Leagues: {
			{"league_id": "l.1", "name": "Dynasty", "season": int64(2025), "current_week": int64(1), "start_week": int64(1)},
		},
		registry.Teams: {
			{"team_id": "t.1", "league_id": "l.1", "name": "Hawks", "manager_name": "Sam", "wins": int64(0), "losses": int64(0)},
			{"team_id": "t.2", "league_id": "l.1", "name": "Owls", "manager_name": "Kit", "wins": int64(0), "losses": int64(0)},
		},
		registry.Rosters: {
			{"roster_id": "r.1", "league_id": "l.1", "team_id": "t.1", "week": int64(1), "player_id": "p.1", "is_starter": true},
			{"roster_id": "r.2", "league_id": "l.1", "team_id": "t.2", "week": int64(1), "player_id": "p.2", "is_starter": false},
		},
	}
}

func TestApply_CommitsCleanBatch(t *testing.T) {
	c, s, reg := newTestCoordinator(t)

	summary, err := c.Apply(context.Background(), newBatch("b.1", firstSeason()))
	require.NoError(t, err)

	assert.Equal(t, StatusCommitted, summary.Status)
	assert.True(t, summary.Committed())
	assert.Equal(t, 5, summary.Inserted())
	assert.Empty(t, summary.Violations)

	// Entities reported in apply order.
	var order []registry.EntityType
	for _, e := range summary.Entities {
		order = append(order, e.EntityType)
	}
	assert.Equal(t, []registry.EntityType{registry.Leagues, registry.Teams, registry.Rosters}, order)

	assert.Equal(t, 1, countOf(t, s, reg, registry.Leagues))
	assert.Equal(t, 2, countOf(t, s, reg, registry.Teams))
	assert.Equal(t, 2, countOf(t, s, reg, registry.Rosters))
}

func TestApply_ReplayConvergesAcrossAllClasses(t *testing.T) {
	c, s, reg := newTestCoordinator(t)

	records := firstSeason()
	records[registry.Transactions] = []record.Record{
		{"transaction_id": "txn.1", "league_id": "l.1", "type": "add", "timestamp": "2025-10-01T00:00:00Z", "player_id": "p.9"},
	}
	records[registry.DraftPicks] = []record.Record{
		{"draft_pick_id": "dp.1", "league_id": "l.1", "pick_number": int64(1), "team_id": "t.1"},
	}

	first, err := c.Apply(context.Background(), newBatch("b.1", records))
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, first.Status)

	second, err := c.Apply(context.Background(), newBatch("b.1-replay", records))
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, second.Status)

	for _, e := range second.Entities {
		switch e.EntityType {
		case registry.Rosters:
			// Window replace: scope rewritten in place.
			assert.Equal(t, 2, e.Deleted, "rosters deleted")
			assert.Equal(t, 2, e.Inserted, "rosters inserted")
		default:
			// Upsert converges to no-op; append-only skips.
			assert.Zero(t, e.Inserted, "%s inserted", e.EntityType)
			assert.Zero(t, e.Updated, "%s updated", e.EntityType)
		}
	}

	assert.Equal(t, 1, countOf(t, s, reg, registry.Leagues))
	assert.Equal(t, 2, countOf(t, s, reg, registry.Teams))
	assert.Equal(t, 2, countOf(t, s, reg, registry.Rosters))
	assert.Equal(t, 1, countOf(t, s, reg, registry.Transactions))
	assert.Equal(t, 1, countOf(t, s, reg, registry.DraftPicks))
}

func TestApply_UpsertTouchesOnlyUpdatableFields(t *testing.T) {
	c, s, reg := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.Apply(ctx, newBatch("b.1", firstSeason()))
	require.NoError(t, err)

	// Next extraction: current week advanced, team records updated. The
	// payload carries a different manager_name, which is not updatable.
	summary, err := c.Apply(ctx, newBatch("b.2", map[registry.EntityType][]record.Record{
		registry.Leagues: {
			{"league_id": "l.1", "name": "Dynasty", "current_week": int64(2)},
		},
		registry.Teams: {
			{"team_id": "t.1", "league_id": "l.1", "name": "Hawks", "manager_name": "SOMEONE ELSE", "wins": int64(1), "losses": int64(0)},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, summary.Status)

	schema, err := reg.Describe(registry.Teams)
	require.NoError(t, err)
	baseline, err := s.BaselineByKeys(ctx, s.DB(), schema, []string{"t.1"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), baseline["t.1"]["wins"])
	assert.Equal(t, "Sam", baseline["t.1"]["manager_name"], "non-updatable field must survive")

	leagueSchema, err := reg.Describe(registry.Leagues)
	require.NoError(t, err)
	leagues, err := s.BaselineByKeys(ctx, s.DB(), leagueSchema, []string{"l.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), leagues["l.1"]["current_week"])
	assert.Equal(t, int64(1), leagues["l.1"]["start_week"], "creation-time field must survive partial payloads")
}

func TestApply_WindowReplaceLeavesOtherScopesIntact(t *testing.T) {
	c, s, reg := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.Apply(ctx, newBatch("b.1", firstSeason()))
	require.NoError(t, err)

	// Week 2 extraction: only week 2 rosters in the batch.
	summary, err := c.Apply(ctx, newBatch("b.2", map[registry.EntityType][]record.Record{
		registry.Rosters: {
			{"roster_id": "r.3", "league_id": "l.1", "team_id": "t.1", "week": int64(2), "player_id": "p.1"},
			{"roster_id": "r.4", "league_id": "l.1", "team_id": "t.1", "week": int64(2), "player_id": "p.3"},
			{"roster_id": "r.5", "league_id": "l.1", "team_id": "t.2", "week": int64(2), "player_id": "p.2"},
		},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, summary.Status)

	schema, err := reg.Describe(registry.Rosters)
	require.NoError(t, err)

	week1, err := s.BaselineByScope(ctx, s.DB(), schema, int64(1))
	require.NoError(t, err)
	assert.Len(t, week1, 2, "week 1 must be untouched by a week 2 batch")

	week2, err := s.BaselineByScope(ctx, s.DB(), schema, int64(2))
	require.NoError(t, err)
	assert.Len(t, week2, 3)
}

func TestApply_AppendOnlyNeverRewritesExistingEvents(t *testing.T) {
	c, s, reg := newTestCoordinator(t)
	ctx := context.Background()

	original := record.Record{
		"transaction_id": "txn.1", "league_id": "l.1", "type": "trade",
		"timestamp": "2025-10-01T00:00:00Z", "player_id": "p.1", "status": "successful",
	}
	_, err := c.Apply(ctx, newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Transactions: {original},
	}))
	require.NoError(t, err)

	schema, err := reg.Describe(registry.Transactions)
	require.NoError(t, err)
	before, err := s.BaselineByKeys(ctx, s.DB(), schema, []string{"txn.1"})
	require.NoError(t, err)
	beforeHash := record.MustContentHash(before["txn.1"], schema.VolatileFields)

	// A later batch carries the same event with mutated content.
	mutated := original.Clone()
	mutated["status"] = "vetoed"
	summary, err := c.Apply(ctx, newBatch("b.2", map[registry.EntityType][]record.Record{
		registry.Transactions: {mutated},
	}))
	require.NoError(t, err)
	require.Equal(t, StatusCommitted, summary.Status)
	assert.Equal(t, 1, summary.Entities[0].Skipped)

	after, err := s.BaselineByKeys(ctx, s.DB(), schema, []string{"txn.1"})
	require.NoError(t, err)
	assert.Equal(t, beforeHash, record.MustContentHash(after["txn.1"], schema.VolatileFields),
		"persisted event must stay byte-identical")
}

func TestApply_RejectsHighSeverityViolationsBeforeAnyWrite(t *testing.T) {
	c, s, reg := newTestCoordinator(t)

	// Distinct primary keys, same business key (league_id, name).
	summary, err := c.Apply(context.Background(), newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Teams: {
			{"team_id": "t.1", "league_id": "l.1", "name": "Hawks"},
			{"team_id": "t.2", "league_id": "l.1", "name": "Hawks"},
		},
	}))

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.False(t, IsApplyError(err))

	require.NotNil(t, summary)
	assert.Equal(t, StatusRolledBack, summary.Status)
	assert.NotEmpty(t, summary.Violations)
	assert.NotEmpty(t, summary.Error)

	assert.Zero(t, countOf(t, s, reg, registry.Teams), "rejection must be mutation-free")
}

func TestApply_MissingKeyFieldIsValidationError(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	_, err := c.Apply(context.Background(), newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Teams: {
			{"league_id": "l.1", "name": "Hawks"}, // no team_id
		},
	}))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestApply_UndeclaredFieldIsValidationError(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	_, err := c.Apply(context.Background(), newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Leagues: {
			{"league_id": "l.1", "name": "Dynasty", "mascot": "ferret"},
		},
	}))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestApply_UnknownEntityTypeIsConfigurationFailure(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	_, err := c.Apply(context.Background(), newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.EntityType("sponsorships"): {
			{"sponsorship_id": "s.1"},
		},
	}))
	require.Error(t, err)

	var ce *registry.ConfigurationError
	assert.True(t, errors.As(err, &ce), "unknown type must surface the registry failure")
}

func TestApply_RollbackIsAtomicAcrossEntityTypes(t *testing.T) {
	c, s, reg := newTestCoordinator(t)
	ctx := context.Background()

	_, err := c.Apply(ctx, newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Leagues: {
			{"league_id": "l.1", "name": "Dynasty", "current_week": int64(1)},
		},
		registry.DraftPicks: {
			{"draft_pick_id": "dp.1", "league_id": "l.1", "pick_number": int64(1)},
		},
	}))
	require.NoError(t, err)

	// Second batch: a clean leagues update first, then a draft pick
	// whose business key collides with a persisted row under a fresh
	// primary key. The insert trips the unique constraint and the whole
	// batch must roll back, leagues included.
	summary, err := c.Apply(ctx, newBatch("b.2", map[registry.EntityType][]record.Record{
		registry.Leagues: {
			{"league_id": "l.1", "name": "Dynasty", "current_week": int64(7)},
		},
		registry.DraftPicks: {
			{"draft_pick_id": "dp.99", "league_id": "l.1", "pick_number": int64(1)},
		},
	}))

	require.Error(t, err)
	assert.True(t, IsApplyError(err))
	assert.Equal(t, StatusRolledBack, summary.Status)

	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, registry.DraftPicks, me.EntityType)
	assert.True(t, me.Retryable)

	schema, err := reg.Describe(registry.Leagues)
	require.NoError(t, err)
	baseline, err := s.BaselineByKeys(ctx, s.DB(), schema, []string{"l.1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), baseline["l.1"]["current_week"],
		"earlier entity types in the batch must roll back too")
	assert.Equal(t, 1, countOf(t, s, reg, registry.DraftPicks))
}

func TestApply_SecondConcurrentBatchIsRejected(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	summary, err := c.Apply(context.Background(), newBatch("b.1", firstSeason()))
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestApply_SummaryCarriesAllViolationSeverities(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	// A re-extracted event under a fresh primary key: identical content
	// apart from the volatile timestamp. The business-key collision is
	// high severity and rejects the batch; the informational
	// exact-duplicate finding rides along on the summary.
	summary, err := c.Apply(context.Background(), newBatch("b.1", map[registry.EntityType][]record.Record{
		registry.Transactions: {
			{"transaction_id": "txn.1", "league_id": "l.1", "type": "add", "timestamp": "2025-10-01T00:00:00Z", "player_id": "p.1", "extracted_at": "2025-10-02T00:00:00Z"},
			{"transaction_id": "txn.2", "league_id": "l.1", "type": "add", "timestamp": "2025-10-01T00:00:00Z", "player_id": "p.1", "extracted_at": "2025-10-03T00:00:00Z"},
		},
	}))
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	require.NotNil(t, summary)

	severities := make(map[dupcheck.Severity]bool)
	for _, v := range summary.Violations {
		severities[v.Severity] = true
	}
	assert.True(t, severities[dupcheck.SeverityHigh])
	assert.True(t, severities[dupcheck.SeverityInfo])
}
