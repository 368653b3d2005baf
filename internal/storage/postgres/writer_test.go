package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/riskpipeline/internal/domain"
)

// pgTest connects to POSTGRES_URL, applies migrations and empties the tables.
// The test is skipped when POSTGRES_URL is not set.
func pgTest(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_URL")
	if dsn == "" {
		t.Skip("POSTGRES_URL not set, skipping integration test")
	}
	ctx := context.Background()
	db, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Ready(ctx))
	require.NoError(t, db.Migrate(ctx))
	_, err = db.Pool.Exec(ctx, "TRUNCATE user_behavior, pipeline_runs")
	require.NoError(t, err)
	return db
}

func rows() []domain.EnrichedEvent {
	diff, avg := 1.0, 1.0
	base := time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC)
	return []domain.EnrichedEvent{
		{
			Event: domain.Event{UserID: "user_1", Timestamp: base, Action: domain.ActionAddToCart, Category: "toys", SessionID: "sess_1"},
			Hour:  22,
		},
		{
			Event:              domain.Event{UserID: "user_1", Timestamp: base.Add(time.Second), Action: domain.ActionAddToCart, Category: "toys", SessionID: "sess_1"},
			TimeDiff:           &diff,
			RollingAvgLatency:  &avg,
			SessionDurationMin: 0.02,
			Hour:               22,
			IsHighRisk:         true,
		},
		{
			Event: domain.Event{UserID: "user_2", Timestamp: base, Action: domain.ActionPurchase, Category: "home", Amount: 99.5, SessionID: "sess_2"},
			Hour:  22,
		},
	}
}

func TestIsDSN(t *testing.T) {
	assert.True(t, IsDSN("postgres://localhost/db"))
	assert.True(t, IsDSN("postgresql://localhost/db"))
	assert.False(t, IsDSN("data/ecommerce_analytics.json"))
}

func TestWriter_ReplaceRoundTrip(t *testing.T) {
	db := pgTest(t)
	ctx := context.Background()
	w := NewWriter(db, 2, zaptest.NewLogger(t))

	run := domain.Run{
		ID:          uuid.NewString(),
		InputPath:   "data/raw_logs.json",
		InputDigest: "abc",
		StartedAt:   time.Now().UTC(),
		Read:        4,
		Valid:       3,
		Rejected:    1,
		HighRisk:    1,
	}
	n, err := w.Replace(ctx, rows(), run)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := w.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Nil(t, got[0].TimeDiff)
	require.NotNil(t, got[1].RollingAvgLatency)
	assert.Equal(t, 1.0, *got[1].RollingAvgLatency)
	assert.True(t, got[1].IsHighRisk)

	last, ok, err := w.LastRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.ID, last.ID)
	assert.Equal(t, 1, last.Rejected)

	// full overwrite, not append
	_, err = w.Replace(ctx, rows()[:1], domain.Run{ID: uuid.NewString(), StartedAt: time.Now().UTC()})
	require.NoError(t, err)
	got, err = w.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDB_QuerySummary(t *testing.T) {
	db := pgTest(t)
	ctx := context.Background()
	_, err := NewWriter(db, 0, zaptest.NewLogger(t)).Replace(ctx, rows(), domain.Run{})
	require.NoError(t, err)

	s, err := db.QuerySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.TotalEvents)
	assert.Equal(t, int64(2), s.UniqueUsers)
	assert.Equal(t, int64(1), s.HighRiskEvents)
	assert.Equal(t, int64(2), s.ActionMix["add_to_cart"])
	assert.Equal(t, int64(3), s.ActivityByHour[22])
	assert.Equal(t, 0.01, s.AvgSessionMin)
	assert.Equal(t, 0.02, s.AvgSessionMinHighRisk)
	assert.Equal(t, "user_1", s.TopVolatilityUser)
	assert.Zero(t, s.TopVolatility)
}

func TestDB_MigrateLeavesPoolOpen(t *testing.T) {
	db := pgTest(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx))
	lines, err := db.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "00001")
	assert.Contains(t, lines[1], "applied")

	assert.NoError(t, db.Ready(ctx))
}
