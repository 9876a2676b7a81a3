package plan

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/sprite-ai/reviewgate/internal/model"
)

var fixedNow = time.Date(2025, 10, 12, 8, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir()).WithClock(func() time.Time { return fixedNow })
}

func samplePlan() *model.ImplementationPlan {
	return &model.ImplementationPlan{
		TaskID:               "TASK-7",
		FilesToCreate:        []string{"a.go", "b.go"},
		ExternalDependencies: []string{"zap"},
		EstimatedLOC:         120,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	s := newStore(t)
	if s.Exists("TASK-7") {
		t.Fatal("unexpected plan")
	}
	review := map[string]any{"score": 82.0}
	if err := s.Save("TASK-7", samplePlan(), review); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := s.Load("TASK-7")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(samplePlan(), rec.Plan); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
	if rec.Version != 1 || !rec.SavedAt.Equal(fixedNow) || rec.ArchitecturalReview["score"] != 82.0 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestStoreLoadErrors(t *testing.T) {
	s := newStore(t)
	if _, err := s.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing plan: got %v", err)
	}

	if err := os.MkdirAll(s.Dir("bad"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path("bad"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.Load("bad")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("corrupt plan: got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("corrupt plan must not look missing")
	}
}

func TestVersionsAreSequential(t *testing.T) {
	s := newStore(t)
	vm := s.Versions("TASK-7", zaptest.NewLogger(t))

	v1, err := vm.Create(samplePlan(), "Initial plan", "system")
	if err != nil {
		t.Fatalf("Create v1: %v", err)
	}
	changed := samplePlan()
	changed.FilesToCreate = []string{"a.go", "c.go"}
	changed.ExternalDependencies = append(changed.ExternalDependencies, "yaml")
	changed.EstimatedLOC = 150
	v2, err := vm.Create(changed, "Modified in review (2 changes)", "user")
	if err != nil {
		t.Fatalf("Create v2: %v", err)
	}

	if v1.Number != 1 || v1.PreviousVersion != 0 || v2.Number != 2 || v2.PreviousVersion != 1 {
		t.Errorf("numbering: v1=%d/%d v2=%d/%d", v1.Number, v1.PreviousVersion, v2.Number, v2.PreviousVersion)
	}
	if vm.Count() != 2 {
		t.Errorf("Count = %d", vm.Count())
	}

	rec, err := s.Load("TASK-7")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != 2 || rec.Plan.EstimatedLOC != 150 {
		t.Errorf("current plan not updated: %+v", rec)
	}

	// Mutating the caller's plan must not affect the stored snapshot.
	changed.FilesToCreate[0] = "mutated.go"
	got, _ := vm.Get(2)
	if got.Plan.FilesToCreate[0] != "a.go" {
		t.Error("version snapshot aliased caller plan")
	}

	cmpRes, err := vm.Compare(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := &Comparison{
		VersionA: 1, VersionB: 2,
		FilesAdded: []string{"c.go"}, FilesRemoved: []string{"b.go"}, FilesUnchanged: []string{"a.go"},
		DependenciesAdded: []string{"yaml"}, DependenciesUnchanged: []string{"zap"},
		LOCChange: 30,
	}
	if diff := cmp.Diff(want, cmpRes); diff != "" {
		t.Errorf("Compare (-want +got):\n%s", diff)
	}
}

func TestVersionSummary(t *testing.T) {
	vm := newStore(t).Versions("TASK-7", nil)
	vm.Create(samplePlan(), "Initial plan", "system")
	v2, _ := vm.Create(samplePlan(), "Again", "user")
	got := v2.Summary()
	for _, want := range []string{"Version 2", "By: user", "Reason: Again", "Previous: v1", "Files: 2", "Dependencies: 1", "Est. LOC: 120"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestVersionDiff(t *testing.T) {
	vm := newStore(t).Versions("TASK-7", nil)
	vm.Create(samplePlan(), "Initial plan", "system")
	p := samplePlan()
	p.EstimatedLOC = 200
	vm.Create(p, "bigger", "user")

	out, err := vm.Diff(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `-   "estimated_loc": 120`) || !strings.Contains(out, `+   "estimated_loc": 200`) {
		t.Errorf("unexpected diff:\n%s", out)
	}
}

func TestDeleteProtectsBaseVersion(t *testing.T) {
	vm := newStore(t).Versions("TASK-7", nil)
	vm.Create(samplePlan(), "v1", "system")
	vm.Create(samplePlan(), "v2", "system")

	if err := vm.Delete(1); !errors.Is(err, ErrDeleteBaseVersion) {
		t.Errorf("Delete(1) = %v", err)
	}
	if err := vm.Delete(9); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("Delete(9) = %v", err)
	}
	if err := vm.Delete(2); err != nil {
		t.Errorf("Delete(2) = %v", err)
	}
	if err := vm.Delete(1); err != nil {
		t.Errorf("Delete(1) alone = %v", err)
	}
}

func TestHistorySkipsUnreadable(t *testing.T) {
	s := newStore(t)
	vm := s.Versions("TASK-7", zaptest.NewLogger(t))
	vm.Create(samplePlan(), "v1", "system")
	if err := os.WriteFile(filepath.Join(vm.dir(), "v2.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	h, err := vm.History()
	if err != nil {
		t.Fatal(err)
	}
	if len(h) != 1 || h[0].Number != 1 {
		t.Errorf("history = %+v", h)
	}
	latest, err := vm.Latest()
	if err != nil || latest.Number != 1 {
		t.Errorf("Latest = %v, %v", latest, err)
	}
}

func TestRecordStoresBaseline(t *testing.T) {
	vm := newStore(t).Versions("TASK-7", zaptest.NewLogger(t))
	base := samplePlan()
	changed := samplePlan()
	changed.FilesToCreate = append(changed.FilesToCreate, "c.go")

	v, err := vm.Record(base, changed, "Modified in review (1 changes)", "user")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if v.Number != 2 || v.PreviousVersion != 1 {
		t.Errorf("got v%d (prev %d), want v2 (prev 1)", v.Number, v.PreviousVersion)
	}
	v1, err := vm.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.CreatedBy != "system" || len(v1.Plan.FilesToCreate) != 2 {
		t.Errorf("unexpected baseline: %+v", v1)
	}

	v3, err := vm.Record(base, changed, "again", "user")
	if err != nil {
		t.Fatal(err)
	}
	if v3.Number != 3 {
		t.Errorf("baseline stored twice: got v%d", v3.Number)
	}
}
