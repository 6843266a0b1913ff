package results

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateCampaign(t *testing.T) {
	store := openTestStore(t)

	id, err := store.CreateCampaign(Campaign{
		Fidelity:    0.9,
		Trials:      3,
		DelayPS:     1_000_000_000,
		MaxAttempts: 2,
		Seed:        7,
	})
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	c, err := store.Campaign(id)
	require.NoError(t, err)
	assert.Equal(t, 0.9, c.Fidelity)
	assert.Equal(t, 3, c.Trials)
	assert.Equal(t, int64(1_000_000_000), c.DelayPS)
	assert.Equal(t, uint64(7), c.Seed)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestCampaignIDsAreOrdered(t *testing.T) {
	store := openTestStore(t)

	first, err := store.CreateCampaign(Campaign{Fidelity: 0.8, Trials: 1})
	require.NoError(t, err)
	second, err := store.CreateCampaign(Campaign{Fidelity: 0.8, Trials: 1})
	require.NoError(t, err)

	assert.Less(t, first, second)
}

func TestRecordTrialsAndSummary(t *testing.T) {
	store := openTestStore(t)

	id, err := store.CreateCampaign(Campaign{Fidelity: 0.9, Trials: 4})
	require.NoError(t, err)

	err = store.RecordTrials(
		Trial{CampaignID: id, Index: 0, Outcome: OutcomeSuccess, Attempts: 1, FinalFidelity: 0.94},
		Trial{CampaignID: id, Index: 1, Outcome: OutcomeFailure, Attempts: 2},
		Trial{CampaignID: id, Index: 2, Outcome: OutcomeSuccess, Attempts: 2, FinalFidelity: 0.96},
		Trial{CampaignID: id, Index: 3, Outcome: OutcomeViolation, Error: "deadline exceeded"},
	)
	require.NoError(t, err)

	trials, err := store.Trials(id)
	require.NoError(t, err)
	require.Len(t, trials, 4)
	assert.Equal(t, "deadline exceeded", trials[3].Error)
	assert.Empty(t, trials[0].Error)

	sum, err := store.Summary(id)
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Trials)
	assert.Equal(t, 2, sum.Successes)
	assert.Equal(t, 1, sum.Failures)
	assert.Equal(t, 1, sum.Violations)
	assert.InDelta(t, 0.95, sum.MeanFidelity, 1e-9)
}

func TestRecordTrialsRollsBack(t *testing.T) {
	store := openTestStore(t)

	id, err := store.CreateCampaign(Campaign{Fidelity: 0.9, Trials: 2})
	require.NoError(t, err)

	err = store.RecordTrials(
		Trial{CampaignID: id, Index: 0, Outcome: OutcomeSuccess, Attempts: 1},
		Trial{CampaignID: "missing", Index: 1, Outcome: OutcomeFailure, Attempts: 1},
	)
	assert.ErrorIs(t, err, ErrUnknownCampaign)

	trials, err := store.Trials(id)
	require.NoError(t, err)
	assert.Empty(t, trials)
}

func TestUnknownCampaign(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Summary("nope")
	assert.ErrorIs(t, err, ErrUnknownCampaign)
}

func TestClosedStore(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.CreateCampaign(Campaign{Fidelity: 0.9})
	assert.ErrorIs(t, err, ErrClosed)
}
