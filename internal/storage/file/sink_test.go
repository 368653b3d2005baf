package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/riskpipeline/internal/domain"
)

func sampleRows() []domain.EnrichedEvent {
	diff := 1.0
	avg := 1.0
	first := domain.Event{
		UserID:    "user_999",
		Timestamp: time.Date(2025, 3, 1, 22, 0, 0, 0, time.UTC),
		Action:    domain.ActionPageRefresh,
		Category:  "electronics",
		SessionID: "sess_999",
	}
	second := first
	second.Timestamp = first.Timestamp.Add(time.Second)
	return []domain.EnrichedEvent{
		{Event: first, Hour: 22},
		{
			Event:              second,
			TimeDiff:           &diff,
			RollingAvgLatency:  &avg,
			SessionDurationMin: 0.02,
			Hour:               22,
			IsHighRisk:         true,
		},
	}
}

func TestSink_ReplaceAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "ecommerce_analytics.json")
	s := NewSink(path, zap.NewNop())
	ctx := context.Background()

	n, err := s.Replace(ctx, sampleRows(), domain.Run{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].TimeDiff)
	assert.Nil(t, got[0].RollingAvgLatency)
	require.NotNil(t, got[1].TimeDiff)
	assert.Equal(t, 1.0, *got[1].TimeDiff)
	assert.True(t, got[1].IsHighRisk)
	assert.True(t, got[1].Timestamp.Equal(sampleRows()[1].Timestamp))
}

func TestSink_ReplaceOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.json")
	s := NewSink(path, zap.NewNop())
	ctx := context.Background()

	_, err := s.Replace(ctx, sampleRows(), domain.Run{})
	require.NoError(t, err)
	_, err = s.Replace(ctx, sampleRows()[:1], domain.Run{})
	require.NoError(t, err)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := Encode(sampleRows())
	require.NoError(t, err)
	b, err := Encode(sampleRows())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, string(a), `"time_diff": null`)
	assert.Contains(t, string(a), `"table": "user_behavior"`)
}

func TestDecode_WrongTable(t *testing.T) {
	_, err := Decode([]byte(`{"table":"orders","rows":[]}`))
	assert.Error(t, err)
}
