package task

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `---
id: TASK-042
title: Add login
status: in_progress
priority: high
tags: [auth, hotfix]
epic: EPIC-7
---
# Add login

Body text.
`

func writeTask(t *testing.T, root string, st State, name, content string) string {
	t.Helper()
	path := filepath.Join(root, st.String(), name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseRoundTrip(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "TASK-042", f.Meta.ID)
	assert.Equal(t, StateInProgress, f.Meta.Status)
	assert.Equal(t, []string{"auth", "hotfix"}, f.Meta.Tags)
	assert.Equal(t, "EPIC-7", f.Meta.Extra["epic"])
	assert.True(t, strings.HasPrefix(f.Body, "# Add login"))

	data, err := f.Marshal()
	require.NoError(t, err)
	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f.Meta.ID, again.Meta.ID)
	assert.Equal(t, "EPIC-7", again.Meta.Extra["epic"])
	assert.Equal(t, f.Body, again.Body)
}

func TestParseWithoutFrontMatter(t *testing.T) {
	f, err := Parse([]byte("just text"))
	require.NoError(t, err)
	assert.Equal(t, "just text", f.Body)
	assert.Empty(t, f.Meta.ID)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("---\nid: x\nno end"))
	assert.Error(t, err)
	_, err = Parse([]byte("---\nstatus: sideways\n---\n"))
	assert.Error(t, err)
}

func TestEvaluationMetadata(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)
	md := f.Meta.EvaluationMetadata()
	assert.Equal(t, "high", md.Priority)
	assert.Contains(t, md.Tags, "hotfix")
}

func TestStoreFind(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, StateBacklog, "TASK-001-some-slug.md", "---\nid: TASK-001\n---\n")
	writeTask(t, root, StateInProgress, "TASK-002.md", "---\nid: TASK-002\nstatus: in_progress\n---\n")

	s := NewStore(root)
	f, err := s.Find("TASK-001")
	require.NoError(t, err)
	assert.Equal(t, "TASK-001", f.Meta.ID)

	f, err = s.Find("TASK-002")
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, f.Meta.Status)

	_, err = s.Find("TASK-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCancelMovesToBacklog(t *testing.T) {
	root := t.TempDir()
	src := writeTask(t, root, StateInProgress, "TASK-042.md", sample)
	now := time.Date(2025, 10, 11, 9, 30, 0, 0, time.UTC)
	s := NewStore(root).WithClock(func() time.Time { return now })

	f, err := Load(src)
	require.NoError(t, err)
	require.NoError(t, s.Cancel(f, "user_requested"))

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	moved, err := Load(filepath.Join(root, "backlog", "TASK-042.md"))
	require.NoError(t, err)
	assert.Equal(t, StateBacklog, moved.Meta.Status)
	assert.True(t, moved.Meta.Cancelled)
	assert.Equal(t, "2025-10-11T09:30:00Z", moved.Meta.CancelledAt)
	assert.Equal(t, "user_requested", moved.Meta.CancellationReason)
	assert.Equal(t, "2025-10-11T09:30:00Z", moved.Meta.Updated)
	assert.Contains(t, moved.Body, "Body text.")
}

func TestStoreList(t *testing.T) {
	root := t.TempDir()
	writeTask(t, root, StateBlocked, "TASK-1.md", "---\nid: TASK-1\nstatus: blocked\n---\n")
	writeTask(t, root, StateBlocked, "notes.txt", "ignored")

	files, err := NewStore(root).List(StateBlocked)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "TASK-1", files[0].Meta.ID)

	none, err := NewStore(root).List(StateCompleted)
	require.NoError(t, err)
	assert.Empty(t, none)
}
