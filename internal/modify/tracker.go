package modify

import (
	"fmt"
	"strings"
	"time"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// Tracker is an append-only log of changes. Pop exists only for undo.
type Tracker struct {
	changes []Change
	now     func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

// Record appends c, stamping it when it has no timestamp.
func (t *Tracker) Record(c Change) Change {
	if c.Timestamp.IsZero() {
		c.Timestamp = t.now().UTC()
	}
	t.changes = append(t.changes, c)
	return c
}

func (t *Tracker) RecordFileAdded(path, purpose string) Change {
	return t.Record(NewFileAdded(ListCreate, path, purpose))
}

func (t *Tracker) RecordFileRemoved(path, reason string) Change {
	return t.Record(NewFileRemoved(ListCreate, path, reason))
}

func (t *Tracker) RecordDependencyAdded(dep, purpose string) Change {
	return t.Record(NewDependencyAdded(dep, purpose))
}

func (t *Tracker) RecordDependencyRemoved(dep, reason string) Change {
	return t.Record(NewDependencyRemoved(dep, reason))
}

func (t *Tracker) RecordPhaseAdded(phase string, position int) Change {
	return t.Record(NewPhaseAdded(phase, position))
}

func (t *Tracker) RecordPhaseRemoved(phase string, position int) Change {
	return t.Record(NewPhaseRemoved(phase, position))
}

func (t *Tracker) RecordRiskAdded(r model.Risk, position int) Change {
	return t.Record(NewRiskAdded(r, position))
}

func (t *Tracker) RecordMetadataUpdated(field, old, updated string) Change {
	return t.Record(NewMetadataUpdated(field, old, updated))
}

// Changes returns a copy of the log.
func (t *Tracker) Changes() []Change {
	return append([]Change(nil), t.changes...)
}

// Len returns the number of recorded changes.
func (t *Tracker) Len() int { return len(t.changes) }

// Last returns the most recent change.
func (t *Tracker) Last() (Change, bool) {
	if len(t.changes) == 0 {
		return Change{}, false
	}
	return t.changes[len(t.changes)-1], true
}

// Pop removes and returns the most recent change.
func (t *Tracker) Pop() (Change, bool) {
	c, ok := t.Last()
	if ok {
		t.changes = t.changes[:len(t.changes)-1]
	}
	return c, ok
}

// ByType returns the changes of type ct in order.
func (t *Tracker) ByType(ct ChangeType) []Change {
	var out []Change
	for _, c := range t.changes {
		if c.Type == ct {
			out = append(out, c)
		}
	}
	return out
}

// Summary renders the log grouped by change type.
func (t *Tracker) Summary() string {
	if len(t.changes) == 0 {
		return "No changes recorded"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Change Summary (%d changes)\n", len(t.changes))
	b.WriteString(strings.Repeat("=", 40))
	for _, ct := range ChangeTypes {
		group := t.ByType(ct)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s:", ct.Title())
		for _, c := range group {
			fmt.Fprintf(&b, "\n  - %s", c.Describe())
		}
	}
	return b.String()
}
