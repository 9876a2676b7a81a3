package modify

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// SessionState is the lifecycle state of a modification session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionActive
	SessionCompleted
	SessionCancelled
	SessionError
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionActive:
		return "active"
	case SessionCompleted:
		return "completed"
	case SessionCancelled:
		return "cancelled"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SessionState) UnmarshalText(b []byte) error {
	for st := SessionIdle; st <= SessionError; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", string(b))
}

var (
	// ErrNoEffect is returned by Do for a change that leaves the plan as is.
	ErrNoEffect = errors.New("change has no effect on the plan")
	// ErrNothingToUndo is returned by Undo on an empty log.
	ErrNothingToUndo = errors.New("no modifications to undo")
)

// StateError reports a lifecycle call made in the wrong state.
type StateError struct {
	Op    string
	State SessionState
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s session in state %s", e.Op, e.State)
}

// Session holds a snapshot of the original plan, a working copy and the
// change log. All mutations go through Do.
type Session struct {
	ID     string
	TaskID string

	state     SessionState
	original  *model.ImplementationPlan
	working   *model.ImplementationPlan
	tracker   *Tracker
	startedAt time.Time
	endedAt   time.Time
	now       func() time.Time
}

// NewSession creates an idle session over a copy of p.
func NewSession(taskID string, p *model.ImplementationPlan, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	id := ulid.MustNew(ulid.Timestamp(now()), ulid.DefaultEntropy())
	return &Session{
		ID:       fmt.Sprintf("session-%s-%s", taskID, id),
		TaskID:   taskID,
		original: p.Clone(),
		working:  p.Clone(),
		tracker:  NewTracker(now),
		now:      now,
	}
}

// State returns the lifecycle state.
func (s *Session) State() SessionState { return s.state }

// Start moves an idle session to active.
func (s *Session) Start() error {
	if s.state != SessionIdle {
		return &StateError{Op: "start", State: s.state}
	}
	s.state = SessionActive
	s.startedAt = s.now().UTC()
	return nil
}

// End completes an active session.
func (s *Session) End() error {
	if s.state != SessionActive {
		return &StateError{Op: "end", State: s.state}
	}
	s.state = SessionCompleted
	s.endedAt = s.now().UTC()
	return nil
}

// Cancel discards the working copy and marks the session cancelled.
func (s *Session) Cancel() error {
	if s.state != SessionIdle && s.state != SessionActive {
		return &StateError{Op: "cancel", State: s.state}
	}
	s.state = SessionCancelled
	s.endedAt = s.now().UTC()
	s.working = s.original.Clone()
	return nil
}

// Fail marks the session as errored.
func (s *Session) Fail() {
	s.state = SessionError
	s.endedAt = s.now().UTC()
}

// Do applies c to the working copy and records it.
func (s *Session) Do(c Change) (Change, error) {
	if s.state != SessionActive {
		return Change{}, &StateError{Op: "modify", State: s.state}
	}
	c = Locate(s.working, c)
	next := s.working.Clone()
	if err := Apply(next, c); err != nil {
		return Change{}, err
	}
	if reflect.DeepEqual(next, s.working) {
		return Change{}, ErrNoEffect
	}
	s.working = next
	return s.tracker.Record(c), nil
}

// Undo reverts the most recent change.
func (s *Session) Undo() (Change, error) {
	if s.state != SessionActive {
		return Change{}, &StateError{Op: "undo", State: s.state}
	}
	c, ok := s.tracker.Last()
	if !ok {
		return Change{}, ErrNothingToUndo
	}
	next := s.working.Clone()
	if err := Invert(next, c); err != nil {
		return Change{}, fmt.Errorf("undo %s: %w", c.Type, err)
	}
	s.tracker.Pop()
	s.working = next
	return c, nil
}

// Original returns a copy of the starting plan.
func (s *Session) Original() *model.ImplementationPlan { return s.original.Clone() }

// Plan returns a copy of the working plan.
func (s *Session) Plan() *model.ImplementationPlan { return s.working.Clone() }

// Tracker exposes the change log.
func (s *Session) Tracker() *Tracker { return s.tracker }

// Changes returns the recorded changes.
func (s *Session) Changes() []Change { return s.tracker.Changes() }

// ModificationCount returns the number of recorded changes.
func (s *Session) ModificationCount() int { return s.tracker.Len() }

// HasUnsavedChanges reports whether an active session has changes.
func (s *Session) HasUnsavedChanges() bool {
	return s.state == SessionActive && s.tracker.Len() > 0
}

// Duration is the time since start, or the full length once ended.
func (s *Session) Duration() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	if !s.endedAt.IsZero() {
		return s.endedAt.Sub(s.startedAt)
	}
	return s.now().Sub(s.startedAt)
}

// SessionMetadata is the persisted header of a session.
type SessionMetadata struct {
	SessionID       string       `json:"session_id"`
	TaskID          string       `json:"task_id"`
	State           SessionState `json:"state"`
	StartedAt       time.Time    `json:"start_time"`
	EndedAt         time.Time    `json:"end_time,omitempty"`
	DurationSeconds float64      `json:"duration_seconds"`
	ChangeCount     int          `json:"change_count"`
}

// Metadata snapshots the session header.
func (s *Session) Metadata() SessionMetadata {
	return SessionMetadata{
		SessionID:       s.ID,
		TaskID:          s.TaskID,
		State:           s.state,
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
		DurationSeconds: s.Duration().Seconds(),
		ChangeCount:     s.tracker.Len(),
	}
}
