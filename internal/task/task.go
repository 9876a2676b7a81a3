// Package task reads and writes task files: Markdown with a YAML
// front-matter block, stored under tasks/{state}/.
package task

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sprite-ai/reviewgate/internal/complexity"
	"github.com/sprite-ai/reviewgate/internal/fileutil"
)

// ErrNotFound is returned when no task file matches an ID.
var ErrNotFound = errors.New("task not found")

// State is a task's workflow state. Its string form is also the directory
// name under the tasks root.
type State int

const (
	StateBacklog State = iota
	StateInProgress
	StateBlocked
	StateDesignApproved
	StateInReview
	StateCompleted
)

// AllStates lists states in directory search order.
var AllStates = []State{
	StateBacklog, StateInProgress, StateInReview, StateBlocked, StateCompleted, StateDesignApproved,
}

func (s State) String() string {
	switch s {
	case StateBacklog:
		return "backlog"
	case StateInProgress:
		return "in_progress"
	case StateBlocked:
		return "blocked"
	case StateDesignApproved:
		return "design_approved"
	case StateInReview:
		return "in_review"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseState parses a state name.
func ParseState(s string) (State, error) {
	for _, st := range AllStates {
		if st.String() == s {
			return st, nil
		}
	}
	return StateBacklog, fmt.Errorf("unknown task state %q", s)
}

func (s State) MarshalText() ([]byte, error) {
	if s < StateBacklog || s > StateCompleted {
		return nil, fmt.Errorf("invalid task state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	st, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Design is the design-approval record written by the design-only workflow.
type Design struct {
	Status          string `yaml:"status"`
	ApprovedAt      string `yaml:"approved_at,omitempty"`
	ApprovedBy      string `yaml:"approved_by,omitempty"`
	ComplexityScore int    `yaml:"complexity_score,omitempty"`
	ReviewMode      string `yaml:"review_mode,omitempty"`
}

// Approved reports whether the design was approved.
func (d *Design) Approved() bool {
	return d != nil && d.Status == "approved"
}

// PlanApproval records a full-review approval.
type PlanApproval struct {
	Approved              bool    `yaml:"approved"`
	ApprovedBy            string  `yaml:"approved_by"`
	ApprovedAt            string  `yaml:"approved_at"`
	ReviewMode            string  `yaml:"review_mode"`
	ReviewDurationSeconds float64 `yaml:"review_duration_seconds"`
	ComplexityScore       int     `yaml:"complexity_score"`
}

// PlanAudit records the outcome of the post-implementation plan audit.
type PlanAudit struct {
	Severity           string `yaml:"severity"`
	DiscrepanciesCount int    `yaml:"discrepancies_count"`
	Decision           string `yaml:"decision"`
	AuditedAt          string `yaml:"audited_at"`
}

// Meta is the parsed front-matter. Unknown keys survive a round trip
// through Extra.
type Meta struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title,omitempty"`
	Status   State    `yaml:"status"`
	Priority string   `yaml:"priority,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	IsHotfix bool     `yaml:"is_hotfix,omitempty"`
	Stack    string   `yaml:"stack,omitempty"`
	Created  string   `yaml:"created,omitempty"`
	Updated  string   `yaml:"updated,omitempty"`

	Cancelled          bool   `yaml:"cancelled,omitempty"`
	CancelledAt        string `yaml:"cancelled_at,omitempty"`
	CancellationReason string `yaml:"cancellation_reason,omitempty"`

	Design             *Design       `yaml:"design,omitempty"`
	ImplementationPlan *PlanApproval `yaml:"implementation_plan,omitempty"`
	PlanAudit          *PlanAudit    `yaml:"plan_audit,omitempty"`
	ComplexitySummary  string        `yaml:"complexity_summary,omitempty"`

	// QASession is the most recent Q&A session. Earlier ones move to
	// QAHistory, oldest first.
	QASession any   `yaml:"qa_session,omitempty"`
	QAHistory []any `yaml:"qa_history,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// EvaluationMetadata maps the front-matter onto complexity inputs.
func (m Meta) EvaluationMetadata() complexity.TaskMetadata {
	return complexity.TaskMetadata{
		Priority: m.Priority,
		Tags:     m.Tags,
		IsHotfix: m.IsHotfix,
	}
}

// File is a task file on disk.
type File struct {
	Path string
	Meta Meta
	Body string
}

var fence = []byte("---")

// Parse splits data into front-matter and body. A file without front-matter
// is all body.
func Parse(data []byte) (*File, error) {
	f := &File{}
	trimmed := bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(trimmed, fence) {
		f.Body = string(data)
		return f, nil
	}
	rest := trimmed[len(fence):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, errors.New("unterminated front-matter")
	}
	if err := yaml.Unmarshal(rest[:end], &f.Meta); err != nil {
		return nil, fmt.Errorf("parsing front-matter: %w", err)
	}
	body := rest[end+len("\n---"):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	f.Body = string(body)
	return f, nil
}

// Marshal renders the file back to Markdown with front-matter.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f.Meta); err != nil {
		return nil, fmt.Errorf("encoding front-matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(f.Body)
	return buf.Bytes(), nil
}

// Load reads and parses a task file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.Path = path
	return f, nil
}

// Save writes the file atomically to its Path.
func (f *File) Save() error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(f.Path, data)
}
