package metrics

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndStats(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	events := []Event{
		{TaskID: "TASK-1", Kind: KindDecision, Score: 2, Mode: "auto_proceed"},
		{TaskID: "TASK-2", Kind: KindDecision, Score: 5, Mode: "quick_optional"},
		{TaskID: "TASK-3", Kind: KindDecision, Score: 8, Mode: "full_required"},
		{TaskID: "TASK-3", Kind: KindReview, Action: "approve", DurationSeconds: 42},
		{TaskID: "TASK-2", Kind: KindReview, Action: "timeout"},
		{TaskID: "TASK-3", Kind: KindAudit, Severity: "high"},
	}
	for _, e := range events {
		require.NoError(t, s.Record(ctx, e))
	}

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalEvents)
	assert.Equal(t, 3, stats.Decisions)
	assert.InDelta(t, 5.0, stats.AverageScore, 0.001)
	assert.Equal(t, map[string]int{"auto_proceed": 1, "quick_optional": 1, "full_required": 1}, stats.ByMode)
	assert.Equal(t, map[string]int{"approve": 1, "timeout": 1}, stats.ByAction)
	assert.Equal(t, map[string]int{"high": 1}, stats.AuditsBySeverity)
}

func TestStatsEmpty(t *testing.T) {
	stats, err := openTest(t).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.AverageScore)
	assert.Empty(t, stats.ByMode)
}

func TestRecentNewestFirst(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 10, 10, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(ctx, Event{
			TaskID:    "TASK-1",
			Kind:      KindDecision,
			Score:     i + 1,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Record(ctx, Event{TaskID: "TASK-2", Kind: KindAudit, CreatedAt: base}))

	got, err := s.Recent(ctx, "TASK-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Score)
	assert.Equal(t, 2, got[1].Score)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, base.Add(2*time.Minute), got[0].CreatedAt)

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRecordRequiresTask(t *testing.T) {
	assert.Error(t, openTest(t).Record(context.Background(), Event{Kind: KindReview}))
}

func TestOpenFailure(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") }

	_, err := Open(filepath.Join(t.TempDir(), "m.db"))
	assert.ErrorContains(t, err, "no driver")
}
