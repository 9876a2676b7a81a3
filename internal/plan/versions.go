package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/fileutil"
	"github.com/sprite-ai/reviewgate/internal/model"
)

var (
	// ErrVersionNotFound is returned for an unknown version number.
	ErrVersionNotFound = errors.New("plan version not found")
	// ErrDeleteBaseVersion is returned when deleting v1 while later versions exist.
	ErrDeleteBaseVersion = errors.New("cannot delete version 1 with other versions present")
)

var versionFile = regexp.MustCompile(`^v(\d+)\.json$`)

// VersionMetadata summarizes a version's plan.
type VersionMetadata struct {
	TaskID          string `json:"task_id"`
	FileCount       int    `json:"file_count"`
	DependencyCount int    `json:"dependency_count"`
}

// Version is one immutable snapshot of a plan.
type Version struct {
	Number          int                       `json:"version_number"`
	Plan            *model.ImplementationPlan `json:"plan"`
	CreatedAt       time.Time                 `json:"created_at"`
	CreatedBy       string                    `json:"created_by"`
	ChangeReason    string                    `json:"change_reason"`
	PreviousVersion int                       `json:"previous_version,omitempty"`
	Metadata        VersionMetadata           `json:"metadata"`
}

// Summary renders the version for listings.
func (v *Version) Summary() string {
	lines := []string{
		fmt.Sprintf("Version %d", v.Number),
		"Created: " + v.CreatedAt.UTC().Format(time.RFC3339),
		"By: " + v.CreatedBy,
		"Reason: " + v.ChangeReason,
	}
	if v.PreviousVersion > 0 {
		lines = append(lines, fmt.Sprintf("Previous: v%d", v.PreviousVersion))
	}
	lines = append(lines,
		fmt.Sprintf("Files: %d", v.Plan.FileCount()),
		fmt.Sprintf("Dependencies: %d", v.Plan.DependencyCount()))
	if v.Plan.EstimatedLOC > 0 {
		lines = append(lines, fmt.Sprintf("Est. LOC: %d", v.Plan.EstimatedLOC))
	}
	return strings.Join(lines, "\n")
}

// Comparison is the set difference between two versions.
type Comparison struct {
	VersionA              int      `json:"version_a"`
	VersionB              int      `json:"version_b"`
	FilesAdded            []string `json:"files_added"`
	FilesRemoved          []string `json:"files_removed"`
	FilesUnchanged        []string `json:"files_unchanged"`
	DependenciesAdded     []string `json:"dependencies_added"`
	DependenciesRemoved   []string `json:"dependencies_removed"`
	DependenciesUnchanged []string `json:"dependencies_unchanged"`
	LOCChange             int      `json:"loc_change"`
}

// VersionManager stores numbered versions under docs/state/{task}/versions.
type VersionManager struct {
	store  *Store
	taskID string
	logger *zap.Logger
}

// Versions returns the version manager for a task.
func (s *Store) Versions(taskID string, logger *zap.Logger) *VersionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionManager{store: s, taskID: taskID, logger: logger}
}

func (m *VersionManager) dir() string {
	return filepath.Join(m.store.Dir(m.taskID), "versions")
}

func (m *VersionManager) path(n int) string {
	return filepath.Join(m.dir(), fmt.Sprintf("v%d.json", n))
}

// Create snapshots p as the next version and makes it the current plan.
func (m *VersionManager) Create(p *model.ImplementationPlan, reason, by string) (*Version, error) {
	history, err := m.History()
	if err != nil {
		return nil, err
	}
	next := 1
	if len(history) > 0 {
		next = history[len(history)-1].Number + 1
	}

	snapshot := p.Clone()
	v := &Version{
		Number:          next,
		Plan:            snapshot,
		CreatedAt:       m.store.now().UTC(),
		CreatedBy:       by,
		ChangeReason:    reason,
		PreviousVersion: next - 1,
		Metadata: VersionMetadata{
			TaskID:          m.taskID,
			FileCount:       snapshot.FileCount(),
			DependencyCount: snapshot.DependencyCount(),
		},
	}

	path := m.path(next)
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("version %d already exists for %s", next, m.taskID)
	}
	if err := fileutil.WriteJSON(path, v); err != nil {
		return nil, fmt.Errorf("saving plan version: %w", err)
	}

	var review map[string]any
	if rec, err := m.store.Load(m.taskID); err == nil {
		review = rec.ArchitecturalReview
	}
	if err := m.store.write(m.taskID, snapshot, next, review); err != nil {
		return nil, err
	}

	m.logger.Info("plan version created",
		zap.String("task_id", m.taskID),
		zap.Int("version", next),
		zap.String("reason", reason))
	return v, nil
}

// Record creates a version for p. When no history exists yet, base is
// stored first as the "Initial plan" so the pre-change state stays
// reachable.
func (m *VersionManager) Record(base, p *model.ImplementationPlan, reason, by string) (*Version, error) {
	if m.Count() == 0 && base != nil {
		if _, err := m.Create(base, "Initial plan", "system"); err != nil {
			return nil, err
		}
	}
	return m.Create(p, reason, by)
}

// Get loads version n.
func (m *VersionManager) Get(n int) (*Version, error) {
	v, err := m.load(m.path(n))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: v%d of %s", ErrVersionNotFound, n, m.taskID)
	}
	return v, err
}

// Latest returns the highest-numbered version.
func (m *VersionManager) Latest() (*Version, error) {
	history, err := m.History()
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s has no versions", ErrVersionNotFound, m.taskID)
	}
	return history[len(history)-1], nil
}

// History returns all readable versions in ascending order. Unreadable
// files are logged and skipped.
func (m *VersionManager) History() ([]*Version, error) {
	entries, err := os.ReadDir(m.dir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	var out []*Version
	for _, e := range entries {
		if !versionFile.MatchString(e.Name()) {
			continue
		}
		v, err := m.load(filepath.Join(m.dir(), e.Name()))
		if err != nil {
			m.logger.Warn("skipping unreadable plan version",
				zap.String("task_id", m.taskID),
				zap.String("file", e.Name()),
				zap.Error(err))
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Count returns the number of readable versions.
func (m *VersionManager) Count() int {
	h, _ := m.History()
	return len(h)
}

func (m *VersionManager) load(path string) (*Version, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if v.Plan == nil {
		return nil, &ParseError{Path: path, Err: errors.New("missing plan")}
	}
	if match := versionFile.FindStringSubmatch(filepath.Base(path)); match != nil {
		if n, _ := strconv.Atoi(match[1]); n != v.Number {
			return nil, &ParseError{Path: path, Err: fmt.Errorf("version number %d does not match file", v.Number)}
		}
	}
	return &v, nil
}

// Compare reports the file and dependency differences from a to b.
func (m *VersionManager) Compare(a, b int) (*Comparison, error) {
	va, err := m.Get(a)
	if err != nil {
		return nil, err
	}
	vb, err := m.Get(b)
	if err != nil {
		return nil, err
	}
	c := &Comparison{VersionA: a, VersionB: b, LOCChange: vb.Plan.EstimatedLOC - va.Plan.EstimatedLOC}
	c.FilesAdded, c.FilesRemoved, c.FilesUnchanged = setDiff(va.Plan.FilesToCreate, vb.Plan.FilesToCreate)
	c.DependenciesAdded, c.DependenciesRemoved, c.DependenciesUnchanged = setDiff(va.Plan.ExternalDependencies, vb.Plan.ExternalDependencies)
	return c, nil
}

// Diff renders a line diff between the JSON forms of two versions' plans.
func (m *VersionManager) Diff(a, b int) (string, error) {
	va, err := m.Get(a)
	if err != nil {
		return "", err
	}
	vb, err := m.Get(b)
	if err != nil {
		return "", err
	}
	ta, err := json.MarshalIndent(va.Plan, "", "  ")
	if err != nil {
		return "", err
	}
	tb, err := json.MarshalIndent(vb.Plan, "", "  ")
	if err != nil {
		return "", err
	}
	return LineDiff(string(ta), string(tb)), nil
}

// LineDiff renders a unified-style line diff of two texts.
func LineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}

// Delete removes version n. Version 1 is kept while later versions exist.
func (m *VersionManager) Delete(n int) error {
	history, err := m.History()
	if err != nil {
		return err
	}
	found := slices.ContainsFunc(history, func(v *Version) bool { return v.Number == n })
	if !found {
		return fmt.Errorf("%w: v%d of %s", ErrVersionNotFound, n, m.taskID)
	}
	if n == 1 && len(history) > 1 {
		return ErrDeleteBaseVersion
	}
	return os.Remove(m.path(n))
}

func setDiff(a, b []string) (added, removed, unchanged []string) {
	inA := make(map[string]bool, len(a))
	for _, s := range a {
		inA[s] = true
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
		if inA[s] {
			unchanged = append(unchanged, s)
		} else {
			added = append(added, s)
		}
	}
	for _, s := range a {
		if !inB[s] {
			removed = append(removed, s)
		}
	}
	return dedupe(added), dedupe(removed), dedupe(unchanged)
}

func dedupe(s []string) []string {
	slices.Sort(s)
	return slices.Compact(s)
}
