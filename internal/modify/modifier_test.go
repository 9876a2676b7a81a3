package modify

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sprite-ai/reviewgate/internal/input"
	"github.com/sprite-ai/reviewgate/internal/plan"
)

type harness struct {
	mod      *Modifier
	plans    *plan.Store
	sessions *SessionStore
	out      *bytes.Buffer
}

func newHarness(t *testing.T, script ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	plans := plan.NewStore(dir + "/state")
	require.NoError(t, plans.Save("TASK-1", basePlan(), nil))

	out := &bytes.Buffer{}
	con := input.NewConsole(strings.NewReader(strings.Join(script, "\n")+"\n"), out)
	t.Cleanup(con.Close)

	sessions := NewSessionStore(dir+"/modifications", zaptest.NewLogger(t))
	mod := NewModifier(Deps{Console: con, Plans: plans, Sessions: sessions, Logger: zaptest.NewLogger(t), Now: clock()})
	return &harness{mod: mod, plans: plans, sessions: sessions, out: out}
}

func TestRunInteractiveSavesVersion(t *testing.T) {
	h := newHarness(t,
		"1", "1", "new.go", "6", // add file to create
		"2", "1", "yaml", "v3", "", "3", // add dependency
		"7", "y", // save
	)
	out, err := h.mod.RunInteractive(context.Background(), "TASK-1")
	require.NoError(t, err)
	assert.True(t, out.Saved)
	require.Len(t, out.Changes, 2)
	require.NotNil(t, out.Version)
	assert.Equal(t, 2, out.Version.Number)
	assert.Equal(t, "Plan modification session (2 changes)", out.Version.ChangeReason)

	rec, err := h.plans.Load("TASK-1")
	require.NoError(t, err)
	assert.Contains(t, rec.Plan.FilesToCreate, "new.go")
	assert.Contains(t, rec.Plan.ExternalDependencies, "yaml v3")
	assert.Equal(t, 2, rec.Version)

	ids, _ := h.sessions.List("TASK-1")
	assert.Len(t, ids, 1)
}

func TestRunInteractiveUndo(t *testing.T) {
	h := newHarness(t,
		"1", "2", "1", "6", // remove a.go
		"6", // undo
		"7", // save with nothing left
	)
	out, err := h.mod.RunInteractive(context.Background(), "TASK-1")
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.Equal(t, MsgNoModifications, out.Message)
	assert.Contains(t, h.out.String(), "Undone: Removed file: a.go")
	assert.Equal(t, 0, h.plans.Versions("TASK-1", nil).Count())
}

func TestRunInteractiveDeclineLeavesPlanUntouched(t *testing.T) {
	h := newHarness(t, "4", "1 day", "300", "7", "7", "n")
	before, err := os.ReadFile(h.plans.Path("TASK-1"))
	require.NoError(t, err)

	out, err := h.mod.RunInteractive(context.Background(), "TASK-1")
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, MsgDiscarded, out.Message)

	after, err := os.ReadFile(h.plans.Path("TASK-1"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunInteractiveEOFCancels(t *testing.T) {
	h := newHarness(t, "1", "1", "x.go")
	out, err := h.mod.RunInteractive(context.Background(), "TASK-1")
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Equal(t, MsgInterrupted, out.Message)
	assert.NotContains(t, out.Plan.FilesToCreate, "x.go")
}

func TestRunInteractiveValidationBlocksSave(t *testing.T) {
	h := newHarness(t,
		"1", "1", "c.go", "2", "3", "6", // add c.go then remove it
		"7", // validation fails
		"8", // cancel
	)
	out, err := h.mod.RunInteractive(context.Background(), "TASK-1")
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Contains(t, h.out.String(), "Conflicting operations on file: c.go")
}

func TestRunInteractiveNoPlan(t *testing.T) {
	h := newHarness(t)
	_, err := h.mod.RunInteractive(context.Background(), "TASK-404")
	assert.True(t, errors.Is(err, ErrNoPlan))
	assert.EqualError(t, err, "no implementation plan found for TASK-404")
}
