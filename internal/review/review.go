// Package review implements the human checkpoints: the quick review with an
// auto-approve countdown, and the full review decision loop.
package review

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sprite-ai/reviewgate/internal/fileutil"
)

const (
	colorRed    = lipgloss.Color("#ff5555")
	colorGreen  = lipgloss.Color("#50fa7b")
	colorYellow = lipgloss.Color("#f1fa8c")
	colorBlue   = lipgloss.Color("#8be9fd")
	colorDim    = lipgloss.Color("#6272a4")
)

// styles are bound to the renderer of the writer they print to, so piped
// output carries no escape codes.
type styles struct {
	title     lipgloss.Style
	heading   lipgloss.Style
	rule      lipgloss.Style
	excellent lipgloss.Style
	fair      lipgloss.Style
	poor      lipgloss.Style
	dim       lipgloss.Style
	accent    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:     r.NewStyle().Foreground(colorBlue).Bold(true),
		heading:   r.NewStyle().Bold(true),
		rule:      r.NewStyle().Foreground(colorDim),
		excellent: r.NewStyle().Foreground(colorGreen).Bold(true),
		fair:      r.NewStyle().Foreground(colorYellow).Bold(true),
		poor:      r.NewStyle().Foreground(colorRed).Bold(true),
		dim:       r.NewStyle().Foreground(colorDim),
		accent:    r.NewStyle().Foreground(colorYellow),
	}
}

// timestamp renders t as UTC RFC 3339 with a Z suffix.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ResultStore writes quick review results next to in-progress tasks.
type ResultStore struct {
	dir string
}

// NewResultStore creates a store under tasksDir/in_progress.
func NewResultStore(tasksDir string) *ResultStore {
	return &ResultStore{dir: filepath.Join(tasksDir, "in_progress")}
}

// Path returns the result file for taskID.
func (s *ResultStore) Path(taskID string) string {
	return filepath.Join(s.dir, taskID+"_review_result.json")
}

// Save writes r for taskID and returns the path written.
func (s *ResultStore) Save(r QuickResult, taskID string) (string, error) {
	path := s.Path(taskID)
	if err := fileutil.WriteJSON(path, r); err != nil {
		return "", fmt.Errorf("saving review result for %s: %w", taskID, err)
	}
	return path, nil
}
