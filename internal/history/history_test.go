package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/apismoke/internal/config"
	"github.com/jmylchreest/apismoke/internal/observability"
	"github.com/jmylchreest/apismoke/internal/runner"
	"github.com/jmylchreest/apismoke/internal/suite"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.HistoryConfig{
		Enabled:  true,
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "history.db"),
		LogLevel: "silent",
		Limit:    20,
	}
	store, err := Open(context.Background(), cfg, observability.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testOutcome(started time.Time, success bool) *suite.Outcome {
	return &suite.Outcome{
		RunID:      ulid.MustNew(ulid.Timestamp(started), ulid.DefaultEntropy()).String(),
		BaseURL:    "http://localhost:8001",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Success:    success,
		Stats:      runner.Stats{Checks: 2, ChecksPassed: 1, Results: 3, ResultsPassed: 2},
		Checks: []runner.CheckOutcome{
			{Name: "CORS Configuration", Passed: true, Elapsed: 20 * time.Millisecond},
			{Name: "Admin Login", Passed: false, Elapsed: 30 * time.Millisecond},
		},
		Results: []runner.TestResult{
			{Name: "CORS Headers", Success: true, Message: "CORS headers are properly configured"},
			{Name: "Admin Login", Success: false, Message: "Login failed with status 401", Details: map[string]any{"status_code": 401}},
			{Name: "Endpoint /api/", Success: true, Message: "Root endpoint is accessible"},
		},
	}
}

func TestOpen_InvalidDriver(t *testing.T) {
	_, err := Open(context.Background(), config.HistoryConfig{Driver: "oracle", DSN: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestGetDialector(t *testing.T) {
	for _, driver := range []string{"sqlite", "postgres", "mysql"} {
		t.Run(driver, func(t *testing.T) {
			d, err := getDialector(config.HistoryConfig{Driver: driver, DSN: "dsn"})
			require.NoError(t, err)
			assert.Equal(t, driver, d.Name())
		})
	}
}

func TestOpen_MigratesAllTables(t *testing.T) {
	store := setupTestStore(t)
	migrator := store.db.Migrator()
	for _, table := range []any{&Run{}, &StoredCheck{}, &StoredResult{}} {
		assert.True(t, migrator.HasTable(table), "%T", table)
	}
}

func TestStore_Ping(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestStore_SaveAndGetRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	outcome := testOutcome(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC), false)
	saved, err := store.SaveRun(ctx, outcome)
	require.NoError(t, err)
	assert.Equal(t, outcome.RunID, saved.ID.String())
	assert.Equal(t, int64(1500), saved.DurationMS)

	run, err := store.GetRun(ctx, outcome.RunID)
	require.NoError(t, err)
	assert.False(t, run.Success)
	assert.Equal(t, 1500*time.Millisecond, run.Duration())
	require.Len(t, run.Checks, 2)
	assert.Equal(t, "CORS Configuration", run.Checks[0].Name)
	assert.Equal(t, "Admin Login", run.Checks[1].Name)
	for i, c := range run.Checks {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, saved.ID, c.RunID)
	}
	assert.True(t, run.Checks[0].Passed)
	assert.False(t, run.Checks[1].Passed)
	assert.Equal(t, int64(30), run.Checks[1].ElapsedMS)

	results, err := store.RunResults(ctx, outcome.RunID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "CORS Headers", results[0].Name)
	assert.Equal(t, "Login failed with status 401", results[1].Message)
	assert.Equal(t, float64(401), results[1].Details["status_code"])
	assert.Nil(t, results[2].Details)
}

func TestStore_GetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), ulid.Make().String())
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = store.GetRun(context.Background(), "not-a-ulid")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_SaveRun_InvalidID(t *testing.T) {
	store := setupTestStore(t)
	outcome := testOutcome(time.Now(), true)
	outcome.RunID = "bogus"

	_, err := store.SaveRun(context.Background(), outcome)
	assert.Error(t, err)
}

func TestStore_RecentRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i := range 5 {
		_, err := store.SaveRun(ctx, testOutcome(base.Add(time.Duration(i)*time.Minute), i%2 == 0))
		require.NoError(t, err)
	}

	runs, err := store.RecentRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.True(t, runs[0].StartedAt.Equal(base.Add(4*time.Minute)))
	assert.True(t, runs[2].StartedAt.Equal(base.Add(2*time.Minute)))
	assert.Empty(t, runs[0].Results)

	all, err := store.RecentRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestStore_Prune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 4 {
		o := testOutcome(base.Add(time.Duration(i)*time.Minute), true)
		ids = append(ids, o.RunID)
		_, err := store.SaveRun(ctx, o)
		require.NoError(t, err)
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = store.GetRun(ctx, ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.GetRun(ctx, ids[3])
	assert.NoError(t, err)

	removed, err = store.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestULID_ScanValue(t *testing.T) {
	id := ULID(ulid.Make())

	v, err := id.Value()
	require.NoError(t, err)

	var got ULID
	require.NoError(t, got.Scan(v))
	assert.Equal(t, id, got)

	require.NoError(t, got.Scan([]byte(id.String())))
	assert.Equal(t, id, got)

	require.NoError(t, got.Scan(nil))
	assert.True(t, got.IsZero())

	assert.Error(t, got.Scan(42))
}

func TestDetails_ScanValue(t *testing.T) {
	v, err := Details(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Details{"method": "GET"}.Value()
	require.NoError(t, err)

	var got Details
	require.NoError(t, got.Scan(v))
	assert.Equal(t, "GET", got["method"])

	assert.Error(t, got.Scan("{not json"))
}
