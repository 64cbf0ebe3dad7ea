package batch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaguevault/leaguevault/internal/registry"
)

func mustRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Load()
	require.NoError(t, err)
	return reg
}

func TestDecode_Envelope(t *testing.T) {
	in := `{
		"batch_id": "batch-2025-w6",
		"extracted_at": "2025-10-14T03:00:00Z",
		"entities": {
			"leagues": [{"league_id": "nfl.l.1", "name": "Dynasty", "current_week": 6}],
			"rosters": [{"roster_id": "r.1", "team_id": "t.1", "week": 6, "player_id": "p.1"}]
		}
	}`

	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, "batch-2025-w6", b.ID)
	assert.Equal(t, "2025-10-14T03:00:00Z", b.ExtractedAt)
	require.Len(t, b.Records[registry.Leagues], 1)
	require.Len(t, b.Records[registry.Rosters], 1)

	// current_week is a declared integer field.
	assert.Equal(t, int64(6), b.Records[registry.Leagues][0]["current_week"])
	assert.Equal(t, int64(6), b.Records[registry.Rosters][0]["week"])
}

func TestDecode_LegacyFlatLayout(t *testing.T) {
	in := `{"transactions": [{"transaction_id": "txn.1", "type": "add"}]}`

	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID, "decoder assigns a batch ID when the extractor did not")
	require.Len(t, b.Records[registry.Transactions], 1)
}

func TestDecode_NumericCoercion(t *testing.T) {
	in := `{"entities": {"teams": [{
		"team_id": "t.1",
		"wins": 10.0,
		"points_for": 1234,
		"faab_balance": "55.5",
		"playoff_seed": "3"
	}]}}`

	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	rec := b.Records[registry.Teams][0]

	assert.Equal(t, int64(10), rec["wins"], "10.0 coerces to integer for an integer field")
	assert.Equal(t, float64(1234), rec["points_for"], "whole number coerces to float for a float field")
	assert.Equal(t, 55.5, rec["faab_balance"], "numeric string coerces for declared fields")
	assert.Equal(t, int64(3), rec["playoff_seed"])
}

func TestDecode_BooleanCoercion(t *testing.T) {
	in := `{"entities": {"rosters": [
		{"roster_id": "r.1", "is_starter": true},
		{"roster_id": "r.2", "is_starter": 1},
		{"roster_id": "r.3", "is_starter": 0}
	]}}`

	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	recs := b.Records[registry.Rosters]
	assert.Equal(t, true, recs[0]["is_starter"])
	assert.Equal(t, true, recs[1]["is_starter"])
	assert.Equal(t, false, recs[2]["is_starter"])
}

func TestDecode_FractionalIntegerFieldRejected(t *testing.T) {
	in := `{"entities": {"teams": [{"team_id": "t.1", "wins": 10.5}]}}`

	_, err := Decode(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wins")
}

func TestValidate_UnknownEntityTypeIsFatal(t *testing.T) {
	in := `{"entities": {"players": [{"player_id": "p.1"}]}}`
	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	err = b.Validate(mustRegistry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "players")
}

func TestValidate_UndeclaredFieldIsError(t *testing.T) {
	in := `{"entities": {"leagues": [{"league_id": "nfl.l.1", "mascot": "hawk"}]}}`
	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	err = b.Validate(mustRegistry(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mascot")
}

func TestTypes_FollowsApplyOrder(t *testing.T) {
	in := `{"entities": {
		"draft_picks": [{"draft_pick_id": "dp.1"}],
		"leagues": [{"league_id": "l.1"}],
		"rosters": [{"roster_id": "r.1"}]
	}}`
	b, err := Decode(strings.NewReader(in))
	require.NoError(t, err)

	got := b.Types(mustRegistry(t))
	assert.Equal(t, []registry.EntityType{registry.Leagues, registry.Rosters, registry.DraftPicks}, got)
}

func TestTotal(t *testing.T) {
	b := New()
	assert.Zero(t, b.Total())
}
