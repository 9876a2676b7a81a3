// Package audit compares an implementation, as seen in a git diff, with the
// plan that was approved for it.
package audit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/diff"
	"github.com/sprite-ai/reviewgate/internal/model"
	"github.com/sprite-ai/reviewgate/internal/plan"
)

// ErrNoPlan is returned when the task has no saved plan to audit against.
var ErrNoPlan = errors.New("no implementation plan to audit")

// DefaultExclude lists paths left out of file comparisons.
var DefaultExclude = []string{
	"**/*_test.go",
	"**/test_*.py",
	"**/*_test.py",
	"**/*.test.ts",
	"**/*.test.tsx",
	"**/*.spec.ts",
	"**/*.spec.tsx",
	"**/tests/**",
	"**/migrations/**",
	"**/__pycache__/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/coverage/**",
	"**/*.pyc",
}

// Severity grades a discrepancy or a whole report.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	if s < SeverityLow || s > SeverityHigh {
		return nil, fmt.Errorf("invalid severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	for _, v := range []Severity{SeverityLow, SeverityMedium, SeverityHigh} {
		if v.String() == string(b) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", string(b))
}

// Kind says what a discrepancy is about.
type Kind string

const (
	KindExtraFiles  Kind = "extra_files"
	KindMissingFile Kind = "missing_files"
	KindExtraDeps   Kind = "extra_dependencies"
	KindMissingDeps Kind = "missing_dependencies"
	KindLOC         Kind = "loc"
	KindDuration    Kind = "duration"
	KindSchema      Kind = "unplanned_schema"
	KindSecurity    Kind = "unplanned_security"
)

// Discrepancy is one difference between plan and implementation.
type Discrepancy struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Items    []string `json:"items,omitempty"`
	Variance float64  `json:"variance"` // percent
}

// PlanSummary is what the plan promised.
type PlanSummary struct {
	Files             int    `json:"files"`
	FilesToModify     int    `json:"files_to_modify"`
	Dependencies      int    `json:"dependencies"`
	EstimatedLOC      int    `json:"estimated_loc"`
	EstimatedDuration string `json:"estimated_duration"`
}

// Actual is what the diff shows.
type Actual struct {
	FilesCreated  []string `json:"files_created"`
	FilesModified []string `json:"files_modified"`
	TotalLOC      int      `json:"total_loc"`
	Dependencies  []string `json:"dependencies"`
	DurationHours float64  `json:"duration_hours"`
}

// Report is the full result of one audit.
type Report struct {
	TaskID          string        `json:"task_id"`
	Plan            PlanSummary   `json:"plan_summary"`
	Actual          Actual        `json:"actual_summary"`
	Discrepancies   []Discrepancy `json:"discrepancies"`
	Severity        Severity      `json:"severity"`
	Recommendations []string      `json:"recommendations"`
	Timestamp       string        `json:"timestamp"`
	PlanPath        string        `json:"plan_path"`
	DurationSeconds float64       `json:"audit_duration_seconds"`
}

// Source yields the diff of the implementation.
type Source interface {
	Diff(ctx context.Context) (*diff.DiffSet, error)
}

// Request selects the task to audit. Started, when set, is when
// implementation began and gives the actual duration.
type Request struct {
	TaskID  string
	Started time.Time
}

// Auditor runs plan audits.
type Auditor struct {
	plans   *plan.Store
	source  Source
	exclude []string
	logger  *zap.Logger
	now     func() time.Time
}

// New creates an auditor. A nil exclude list means DefaultExclude.
func New(plans *plan.Store, source Source, exclude []string, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if exclude == nil {
		exclude = DefaultExclude
	}
	return &Auditor{plans: plans, source: source, exclude: exclude, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (a *Auditor) WithClock(now func() time.Time) *Auditor {
	a.now = now
	return a
}

// Audit compares the task's saved plan with the current diff.
func (a *Auditor) Audit(ctx context.Context, req Request) (*Report, error) {
	start := a.now()
	rec, err := a.plans.Load(req.TaskID)
	if errors.Is(err, plan.ErrNotFound) {
		return nil, fmt.Errorf("%w for %s", ErrNoPlan, req.TaskID)
	}
	if err != nil {
		return nil, err
	}
	ds, err := a.source.Diff(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading implementation diff: %w", err)
	}

	r := a.Compare(rec.Plan, ds)
	r.TaskID = req.TaskID
	r.PlanPath = a.plans.Path(req.TaskID)
	if !req.Started.IsZero() {
		r.Actual.DurationHours = start.Sub(req.Started).Hours()
		if d := durationDiscrepancy(rec.Plan.EstimatedDuration, r.Actual.DurationHours); d != nil {
			r.Discrepancies = append(r.Discrepancies, *d)
			r.Severity = overallSeverity(r.Discrepancies)
			r.Recommendations = recommendations(r.Discrepancies)
		}
	}
	end := a.now()
	r.Timestamp = end.UTC().Format(time.RFC3339)
	r.DurationSeconds = end.Sub(start).Seconds()

	a.logger.Info("plan audit finished",
		zap.String("task_id", req.TaskID),
		zap.Stringer("severity", r.Severity),
		zap.Int("discrepancies", len(r.Discrepancies)))
	return r, nil
}

// Compare audits p against ds. Duration is not compared.
func (a *Auditor) Compare(p *model.ImplementationPlan, ds *diff.DiffSet) *Report {
	r := &Report{
		Plan: PlanSummary{
			Files:             len(p.FilesToCreate),
			FilesToModify:     len(p.FilesToModify),
			Dependencies:      len(p.ExternalDependencies),
			EstimatedLOC:      p.EstimatedLOC,
			EstimatedDuration: orNA(p.EstimatedDuration),
		},
		Actual: a.analyze(ds),
	}
	r.Discrepancies = append(r.Discrepancies, a.compareFiles(p, r.Actual)...)
	r.Discrepancies = append(r.Discrepancies, compareDependencies(p, r.Actual)...)
	if d := locDiscrepancy(p.EstimatedLOC, r.Actual.TotalLOC); d != nil {
		r.Discrepancies = append(r.Discrepancies, *d)
	}
	r.Discrepancies = append(r.Discrepancies, surfaceDiscrepancies(p, ds)...)
	r.Severity = overallSeverity(r.Discrepancies)
	r.Recommendations = recommendations(r.Discrepancies)
	return r
}

func (a *Auditor) analyze(ds *diff.DiffSet) Actual {
	var act Actual
	for _, f := range ds.Files {
		if f.IsDeleted || f.IsBinary {
			continue
		}
		act.TotalLOC += f.CodeLines()
		if f.IsNew {
			act.FilesCreated = append(act.FilesCreated, f.Name())
		} else {
			act.FilesModified = append(act.FilesModified, f.Name())
		}
	}
	act.Dependencies = AddedDependencies(ds)
	return act
}

func (a *Auditor) excluded(path string) bool {
	for _, pat := range a.exclude {
		if ok, _ := doublestar.Match(pat, path); ok {
			return true
		}
	}
	return false
}

func (a *Auditor) filter(paths []string) []string {
	var out []string
	for _, p := range paths {
		if !a.excluded(p) {
			out = append(out, p)
		}
	}
	return out
}

// compareFiles checks created files against files_to_create. Excluded paths
// are dropped from both sides.
func (a *Auditor) compareFiles(p *model.ImplementationPlan, act Actual) []Discrepancy {
	planned := a.filter(p.FilesToCreate)
	created := a.filter(act.FilesCreated)
	extra := minus(created, planned)
	missing := minus(planned, created)
	base := float64(max(len(planned), 1))

	var out []Discrepancy
	if len(extra) > 0 {
		sev := SeverityMedium
		if len(extra) > 2 {
			sev = SeverityHigh
		}
		out = append(out, Discrepancy{
			Kind:     KindExtraFiles,
			Severity: sev,
			Message:  fmt.Sprintf("%d extra file(s) not in plan", len(extra)),
			Items:    extra,
			Variance: float64(len(extra)) / base * 100,
		})
	}
	if len(missing) > 0 {
		out = append(out, Discrepancy{
			Kind:     KindMissingFile,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("%d planned file(s) not created", len(missing)),
			Items:    missing,
			Variance: float64(len(missing)) / base * 100,
		})
	}
	return out
}

func compareDependencies(p *model.ImplementationPlan, act Actual) []Discrepancy {
	var extra, missing []string
	for _, d := range act.Dependencies {
		if !slices.ContainsFunc(p.ExternalDependencies, func(pd string) bool { return sameDependency(pd, d) }) {
			extra = append(extra, d)
		}
	}
	for _, pd := range p.ExternalDependencies {
		if !slices.ContainsFunc(act.Dependencies, func(d string) bool { return sameDependency(pd, d) }) {
			missing = append(missing, pd)
		}
	}
	base := float64(max(len(p.ExternalDependencies), 1))

	var out []Discrepancy
	if len(extra) > 0 {
		sev := SeverityMedium
		if len(extra) > 1 {
			sev = SeverityHigh
		}
		out = append(out, Discrepancy{
			Kind:     KindExtraDeps,
			Severity: sev,
			Message:  fmt.Sprintf("%d extra dependenc(ies) not in plan", len(extra)),
			Items:    extra,
			Variance: float64(len(extra)) / base * 100,
		})
	}
	if len(missing) > 0 {
		out = append(out, Discrepancy{
			Kind:     KindMissingDeps,
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("%d planned dependenc(ies) not added", len(missing)),
			Items:    missing,
			Variance: float64(len(missing)) / base * 100,
		})
	}
	return out
}

// sameDependency matches a planned dependency, which is often a short name
// with a version ("yaml v3"), against a manifest entry such as
// "gopkg.in/yaml.v3" or "github.com/spf13/cobra".
func sameDependency(planned, actual string) bool {
	pf := strings.Fields(strings.ToLower(planned))
	if len(pf) == 0 {
		return false
	}
	name := pf[0]
	a := strings.ToLower(actual)
	if a == name {
		return true
	}
	last := a[strings.LastIndex(a, "/")+1:]
	if last == name {
		return true
	}
	base, _, _ := strings.Cut(last, ".")
	return base == name
}

// varianceSeverity grades a percentage variance. Variances of 10% or less
// are not reported.
func varianceSeverity(v float64) (Severity, bool) {
	switch v = abs(v); {
	case v <= 10:
		return SeverityLow, false
	case v < 30:
		return SeverityLow, true
	case v < 50:
		return SeverityMedium, true
	default:
		return SeverityHigh, true
	}
}

func locDiscrepancy(planned, actual int) *Discrepancy {
	if planned <= 0 || actual <= 0 {
		return nil
	}
	v := float64(actual-planned) / float64(planned) * 100
	sev, ok := varianceSeverity(v)
	if !ok {
		return nil
	}
	return &Discrepancy{
		Kind:     KindLOC,
		Severity: sev,
		Message:  fmt.Sprintf("LOC variance: %+.1f%% (%d → %d lines)", v, planned, actual),
		Variance: abs(v),
	}
}

func durationDiscrepancy(estimate string, actualHours float64) *Discrepancy {
	planned := ParseDuration(estimate)
	if planned <= 0 || actualHours <= 0 {
		return nil
	}
	v := (actualHours - planned) / planned * 100
	sev, ok := varianceSeverity(v)
	if !ok {
		return nil
	}
	return &Discrepancy{
		Kind:     KindDuration,
		Severity: sev,
		Message:  fmt.Sprintf("Duration variance: %+.1f%% (%.1fh → %.1fh)", v, planned, actualHours),
		Variance: abs(v),
	}
}

// overallSeverity is high with any high finding or three medium ones, and
// medium with at least one medium.
func overallSeverity(ds []Discrepancy) Severity {
	high, medium := 0, 0
	for _, d := range ds {
		switch d.Severity {
		case SeverityHigh:
			high++
		case SeverityMedium:
			medium++
		}
	}
	switch {
	case high >= 1 || medium >= 3:
		return SeverityHigh
	case medium >= 1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func recommendations(ds []Discrepancy) []string {
	var out []string
	for _, d := range ds {
		switch {
		case d.Kind == KindExtraFiles:
			out = append(out, "Review extra files for scope creep: "+preview(d.Items))
		case d.Kind == KindMissingFile:
			out = append(out, "Verify planned files were created: "+preview(d.Items))
		case d.Kind == KindExtraDeps:
			out = append(out, "Justify extra dependencies: "+preview(d.Items))
		case d.Kind == KindSchema:
			out = append(out, "Confirm unplanned schema changes were reviewed: "+preview(d.Items))
		case d.Kind == KindSecurity:
			out = append(out, "Request a security review of: "+preview(d.Items))
		case d.Kind == KindLOC && d.Variance > 50:
			out = append(out, fmt.Sprintf("Understand why LOC exceeded estimate by %.0f%%", d.Variance))
		case d.Kind == KindDuration && d.Variance > 50:
			out = append(out, fmt.Sprintf("Analyze duration overrun (%.0f%%) for future estimates", d.Variance))
		}
	}
	if len(out) == 0 {
		out = append(out, "No major concerns - implementation closely matches plan")
	}
	return out
}

func preview(items []string) string {
	s := strings.Join(items[:min(len(items), 3)], ", ")
	if len(items) > 3 {
		s += fmt.Sprintf(", ... and %d more", len(items)-3)
	}
	return s
}

// minus returns the sorted members of a not in b.
func minus(a, b []string) []string {
	var out []string
	for _, s := range a {
		if !slices.Contains(b, s) && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
