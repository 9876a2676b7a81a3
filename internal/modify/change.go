// Package modify implements plan modification sessions: a change log with
// undo, validation, persistence and the interactive modification menu.
package modify

import (
	"fmt"
	"strings"
	"time"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// ChangeType identifies a plan mutation.
type ChangeType int

const (
	FileAdded ChangeType = iota
	FileRemoved
	FileModified
	DependencyAdded
	DependencyRemoved
	PhaseAdded
	PhaseRemoved
	PhaseReordered
	RiskAdded
	RiskModified
	RiskRemoved
	MetadataUpdated
)

// ChangeTypes lists every change type in summary order.
var ChangeTypes = []ChangeType{
	FileAdded, FileRemoved, FileModified,
	DependencyAdded, DependencyRemoved,
	PhaseAdded, PhaseRemoved, PhaseReordered,
	RiskAdded, RiskModified, RiskRemoved,
	MetadataUpdated,
}

func (t ChangeType) String() string {
	switch t {
	case FileAdded:
		return "file_added"
	case FileRemoved:
		return "file_removed"
	case FileModified:
		return "file_modified"
	case DependencyAdded:
		return "dependency_added"
	case DependencyRemoved:
		return "dependency_removed"
	case PhaseAdded:
		return "phase_added"
	case PhaseRemoved:
		return "phase_removed"
	case PhaseReordered:
		return "phase_reordered"
	case RiskAdded:
		return "risk_added"
	case RiskModified:
		return "risk_modified"
	case RiskRemoved:
		return "risk_removed"
	case MetadataUpdated:
		return "metadata_updated"
	default:
		return "unknown"
	}
}

// Title renders the type as a heading, e.g. "File Added".
func (t ChangeType) Title() string {
	words := strings.Split(t.String(), "_")
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (t ChangeType) MarshalText() ([]byte, error) {
	if t < FileAdded || t > MetadataUpdated {
		return nil, fmt.Errorf("invalid change type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *ChangeType) UnmarshalText(b []byte) error {
	for _, ct := range ChangeTypes {
		if ct.String() == string(b) {
			*t = ct
			return nil
		}
	}
	return fmt.Errorf("unknown change type %q", string(b))
}

// FileList selects which file list a file change targets.
type FileList int

const (
	ListCreate FileList = iota
	ListModify
)

func (l FileList) String() string {
	if l == ListModify {
		return "modify"
	}
	return "create"
}

func (l FileList) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

func (l *FileList) UnmarshalText(b []byte) error {
	switch string(b) {
	case "create", "":
		*l = ListCreate
	case "modify":
		*l = ListModify
	default:
		return fmt.Errorf("unknown file list %q", string(b))
	}
	return nil
}

// Metadata fields editable through MetadataUpdated.
const (
	FieldEstimatedLOC        = "estimated_loc"
	FieldEstimatedDuration   = "estimated_duration"
	FieldEstimatedComplexity = "estimated_complexity"
)

// Change is one recorded mutation. Values are never edited after recording.
type Change struct {
	Type      ChangeType        `json:"change_type"`
	Timestamp time.Time         `json:"timestamp"`
	Target    string            `json:"target"`
	OldValue  string            `json:"old_value,omitempty"`
	NewValue  string            `json:"new_value,omitempty"`
	List      FileList          `json:"list,omitempty"`
	Position  int               `json:"position,omitempty"`
	To        int               `json:"to,omitempty"`
	Index     *int              `json:"index,omitempty"`
	OldRisk   *model.Risk       `json:"old_risk,omitempty"`
	NewRisk   *model.Risk       `json:"new_risk,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Describe renders the change as a single line.
func (c Change) Describe() string {
	switch c.Type {
	case FileAdded:
		return "Added file: " + c.Target
	case FileRemoved:
		return "Removed file: " + c.Target
	case FileModified:
		return fmt.Sprintf("Modified file: %s -> %s", c.OldValue, c.NewValue)
	case DependencyAdded:
		return "Added dependency: " + c.Target
	case DependencyRemoved:
		return "Removed dependency: " + c.Target
	case PhaseAdded:
		return "Added phase: " + c.Target
	case PhaseRemoved:
		return "Removed phase: " + c.Target
	case PhaseReordered:
		return fmt.Sprintf("Reordered phases: %d -> %d", c.Position+1, c.To+1)
	case RiskAdded:
		return "Added risk: " + c.Target
	case RiskModified:
		return "Modified risk: " + c.Target
	case RiskRemoved:
		return "Removed risk: " + c.Target
	case MetadataUpdated:
		return fmt.Sprintf("Updated %s: %s -> %s", c.Target, c.OldValue, c.NewValue)
	default:
		return "Unknown change: " + c.Type.String()
	}
}

func withNote(key, value string) map[string]string {
	if value == "" {
		return nil
	}
	return map[string]string{key: value}
}

// NewFileAdded records adding path to a file list.
func NewFileAdded(list FileList, path, purpose string) Change {
	return Change{Type: FileAdded, Target: path, NewValue: path, List: list, Metadata: withNote("purpose", purpose)}
}

// NewFileRemoved records removing path from a file list.
func NewFileRemoved(list FileList, path, reason string) Change {
	return Change{Type: FileRemoved, Target: path, OldValue: path, List: list, Metadata: withNote("reason", reason)}
}

// NewFileModified records renaming a planned file.
func NewFileModified(list FileList, oldPath, newPath string) Change {
	return Change{Type: FileModified, Target: newPath, OldValue: oldPath, NewValue: newPath, List: list}
}

// NewDependencyAdded records adding a dependency.
func NewDependencyAdded(dep, purpose string) Change {
	return Change{Type: DependencyAdded, Target: dep, NewValue: dep, Metadata: withNote("purpose", purpose)}
}

// NewDependencyRemoved records removing a dependency.
func NewDependencyRemoved(dep, reason string) Change {
	return Change{Type: DependencyRemoved, Target: dep, OldValue: dep, Metadata: withNote("reason", reason)}
}

// NewPhaseAdded records inserting a phase at position.
func NewPhaseAdded(phase string, position int) Change {
	return Change{Type: PhaseAdded, Target: phase, NewValue: phase, Position: position}
}

// NewPhaseRemoved records removing the phase at position.
func NewPhaseRemoved(phase string, position int) Change {
	return Change{Type: PhaseRemoved, Target: phase, OldValue: phase, Position: position}
}

// NewPhaseReordered records moving the phase at from to to.
func NewPhaseReordered(phase string, from, to int) Change {
	return Change{Type: PhaseReordered, Target: phase, Position: from, To: to}
}

// NewRiskAdded records appending a risk at position.
func NewRiskAdded(r model.Risk, position int) Change {
	return Change{Type: RiskAdded, Target: r.Description, NewRisk: &r, Position: position}
}

// NewRiskModified records replacing the risk at position.
func NewRiskModified(old, updated model.Risk, position int) Change {
	return Change{Type: RiskModified, Target: updated.Description, OldRisk: &old, NewRisk: &updated, Position: position}
}

// NewRiskRemoved records removing the risk at position.
func NewRiskRemoved(r model.Risk, position int) Change {
	return Change{Type: RiskRemoved, Target: r.Description, OldRisk: &r, Position: position}
}

// NewMetadataUpdated records a field change. Values are string-encoded.
func NewMetadataUpdated(field, old, updated string) Change {
	return Change{Type: MetadataUpdated, Target: field, OldValue: old, NewValue: updated}
}
