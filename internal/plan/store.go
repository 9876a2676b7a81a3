// Package plan persists implementation plans and their immutable version
// history under the state directory.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sprite-ai/reviewgate/internal/fileutil"
	"github.com/sprite-ai/reviewgate/internal/model"
)

const planFile = "implementation_plan.json"

// ErrNotFound is returned when a task has no saved plan.
var ErrNotFound = errors.New("implementation plan not found")

// ParseError reports a plan file that exists but cannot be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Record is the on-disk envelope of the current plan.
type Record struct {
	TaskID              string                    `json:"task_id"`
	SavedAt             time.Time                 `json:"saved_at"`
	Version             int                       `json:"version"`
	Plan                *model.ImplementationPlan `json:"plan"`
	ArchitecturalReview map[string]any            `json:"architectural_review,omitempty"`
}

// Store reads and writes docs/state/{task}/implementation_plan.json.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir (usually "docs/state").
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// WithClock overrides the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir returns the state directory of a task.
func (s *Store) Dir(taskID string) string {
	return filepath.Join(s.dir, taskID)
}

// Path returns the plan file path of a task.
func (s *Store) Path(taskID string) string {
	return filepath.Join(s.Dir(taskID), planFile)
}

// Exists reports whether a plan is saved for the task.
func (s *Store) Exists(taskID string) bool {
	_, err := os.Stat(s.Path(taskID))
	return err == nil
}

// Save writes the plan as the task's current plan. The version number is
// carried over from the existing record.
func (s *Store) Save(taskID string, p *model.ImplementationPlan, review map[string]any) error {
	version := 1
	if rec, err := s.Load(taskID); err == nil {
		version = rec.Version
		if review == nil {
			review = rec.ArchitecturalReview
		}
	}
	return s.write(taskID, p, version, review)
}

func (s *Store) write(taskID string, p *model.ImplementationPlan, version int, review map[string]any) error {
	rec := Record{
		TaskID:              taskID,
		SavedAt:             s.now().UTC(),
		Version:             version,
		Plan:                p,
		ArchitecturalReview: review,
	}
	if err := fileutil.WriteJSON(s.Path(taskID), rec); err != nil {
		return fmt.Errorf("failed to save implementation plan for %s: %w", taskID, err)
	}
	return nil
}

// Load reads the task's current plan.
func (s *Store) Load(taskID string) (*Record, error) {
	path := s.Path(taskID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w for %s", ErrNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if rec.Plan == nil {
		return nil, &ParseError{Path: path, Err: errors.New("missing plan")}
	}
	if rec.Plan.TaskID == "" {
		rec.Plan.TaskID = taskID
	}
	return &rec, nil
}

// Delete removes the task's current plan. Versions are untouched.
func (s *Store) Delete(taskID string) error {
	err := os.Remove(s.Path(taskID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
