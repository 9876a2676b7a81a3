package modify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func clock() func() time.Time {
	t := time.Date(2025, 10, 13, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("TASK-1", basePlan(), clock())
	assert.True(t, strings.HasPrefix(s.ID, "session-TASK-1-"))
	assert.Equal(t, SessionIdle, s.State())

	_, err := s.Do(NewFileAdded(ListCreate, "c.go", ""))
	var serr *StateError
	require.ErrorAs(t, err, &serr)

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	_, err = s.Do(NewFileAdded(ListCreate, "c.go", ""))
	require.NoError(t, err)
	assert.True(t, s.HasUnsavedChanges())

	require.NoError(t, s.End())
	assert.Equal(t, SessionCompleted, s.State())
	assert.False(t, s.HasUnsavedChanges())
	assert.Error(t, s.Cancel())
	assert.Greater(t, s.Duration(), time.Duration(0))
}

func TestSessionUndo(t *testing.T) {
	s := NewSession("TASK-1", basePlan(), clock())
	require.NoError(t, s.Start())

	_, err := s.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	_, err = s.Do(NewFileAdded(ListCreate, "c.go", ""))
	require.NoError(t, err)
	_, err = s.Do(NewDependencyRemoved("zap", ""))
	require.NoError(t, err)
	assert.Equal(t, 2, s.ModificationCount())

	undone, err := s.Undo()
	require.NoError(t, err)
	assert.Equal(t, DependencyRemoved, undone.Type)
	assert.Equal(t, []string{"zap"}, s.Plan().ExternalDependencies)

	_, err = s.Undo()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(basePlan(), s.Plan()))
	assert.Equal(t, 0, s.ModificationCount())
}

func TestSessionRejectsNoOps(t *testing.T) {
	s := NewSession("TASK-1", basePlan(), clock())
	require.NoError(t, s.Start())
	_, err := s.Do(NewFileAdded(ListCreate, "a.go", ""))
	assert.ErrorIs(t, err, ErrNoEffect)
	assert.Equal(t, 0, s.ModificationCount())
}

func TestSessionCancelRestoresOriginal(t *testing.T) {
	s := NewSession("TASK-1", basePlan(), clock())
	require.NoError(t, s.Start())
	s.Do(NewFileRemoved(ListCreate, "a.go", ""))
	require.NoError(t, s.Cancel())
	assert.Empty(t, cmp.Diff(basePlan(), s.Plan()))
}

func TestTrackerSummary(t *testing.T) {
	tr := NewTracker(clock())
	tr.RecordFileAdded("c.go", "")
	tr.RecordDependencyAdded("yaml", "")
	tr.RecordFileAdded("d.go", "")

	got := tr.Summary()
	assert.True(t, strings.HasPrefix(got, "Change Summary (3 changes)"))
	assert.Contains(t, got, "File Added:\n  - Added file: c.go\n  - Added file: d.go")
	assert.Contains(t, got, "Dependency Added:\n  - Added dependency: yaml")
	assert.Len(t, tr.ByType(FileAdded), 2)
}

func TestSessionStore(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir, zaptest.NewLogger(t))
	now := clock()

	first := NewSession("TASK-1", basePlan(), now)
	first.Start()
	first.Do(NewFileAdded(ListCreate, "c.go", ""))
	first.End()
	_, err := store.Save(first)
	require.NoError(t, err)

	second := NewSession("TASK-1", basePlan(), now)
	second.Start()
	second.Do(NewPhaseAdded("deploy", 3))
	second.End()
	_, err = store.Save(second)
	require.NoError(t, err)
	summaryPath, err := store.SaveSummary(second)
	require.NoError(t, err)
	data, _ := os.ReadFile(summaryPath)
	assert.Contains(t, string(data), "Added phase: deploy")

	ids, err := store.List("TASK-1")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, second.ID}, ids)

	latest, err := store.Latest("TASK-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.Metadata.SessionID)
	require.Len(t, latest.Changes, 1)
	assert.Equal(t, PhaseAdded, latest.Changes[0].Type)
	assert.Equal(t, 3, latest.Changes[0].Position)

	require.NoError(t, store.Delete("TASK-1", second.ID))
	_, err = store.Load("TASK-1", second.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store := NewSessionStore(dir, zaptest.NewLogger(t))
	path := filepath.Join(dir, "TASK-1", "session-TASK-1-bad.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := store.Load("TASK-1", "session-TASK-1-bad")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
