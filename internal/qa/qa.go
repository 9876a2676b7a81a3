// Package qa answers questions about an implementation plan by keyword
// matching and records the exchanges on the task.
package qa

import (
	"fmt"
	"time"
)

// ExitReason records how a Q&A session ended.
type ExitReason int

const (
	ExitBack ExitReason = iota
	ExitInterrupt
	ExitError
)

func (r ExitReason) String() string {
	switch r {
	case ExitBack:
		return "back"
	case ExitInterrupt:
		return "interrupt"
	case ExitError:
		return "error"
	default:
		return "unknown"
	}
}

func (r ExitReason) MarshalText() ([]byte, error) {
	if r < ExitBack || r > ExitError {
		return nil, fmt.Errorf("invalid exit reason %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *ExitReason) UnmarshalText(b []byte) error {
	switch string(b) {
	case "back":
		*r = ExitBack
	case "interrupt":
		*r = ExitInterrupt
	case "error":
		*r = ExitError
	default:
		return fmt.Errorf("unknown exit reason %q", string(b))
	}
	return nil
}

// Exchange is one answered question.
type Exchange struct {
	Question   string    `json:"question" yaml:"question"`
	Answer     string    `json:"answer" yaml:"answer"`
	Confidence int       `json:"confidence" yaml:"confidence"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Session is a complete Q&A run against one plan.
type Session struct {
	ID         string     `json:"session_id" yaml:"session_id"`
	TaskID     string     `json:"task_id" yaml:"task_id"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	Exchanges  []Exchange `json:"exchanges" yaml:"exchanges"`
	EndedAt    *time.Time `json:"ended_at" yaml:"ended_at"`
	ExitReason ExitReason `json:"exit_reason" yaml:"exit_reason"`
}

// Answer is a generated reply together with how it was chosen.
type Answer struct {
	Text            string
	Confidence      int
	Category        Category
	MatchedKeywords []string
	Section         Section
}
