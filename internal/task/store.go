package task

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Store locates and moves task files under a tasks root.
type Store struct {
	root string
	now  func() time.Time
}

// NewStore creates a store rooted at dir (usually "tasks").
func NewStore(dir string) *Store {
	return &Store{root: dir, now: time.Now}
}

// WithClock overrides the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Root returns the tasks root.
func (s *Store) Root() string { return s.root }

// Dir returns the directory holding tasks in state st.
func (s *Store) Dir(st State) string {
	return filepath.Join(s.root, st.String())
}

// Find locates the task file for id in any state directory. Both
// "{id}.md" and "{id}-{slug}.md" match.
func (s *Store) Find(id string) (*File, error) {
	for _, st := range AllStates {
		exact := filepath.Join(s.Dir(st), id+".md")
		if _, err := os.Stat(exact); err == nil {
			return Load(exact)
		}
		matches, _ := filepath.Glob(filepath.Join(s.Dir(st), id+"-*.md"))
		sort.Strings(matches)
		if len(matches) > 0 {
			return Load(matches[0])
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Save stamps the updated time and writes f in place.
func (s *Store) Save(f *File) error {
	f.Meta.Updated = s.Timestamp()
	return f.Save()
}

// Move sets the task's status and relocates it to the state's directory.
func (s *Store) Move(f *File, to State) error {
	f.Meta.Status = to
	f.Meta.Updated = s.Timestamp()

	dst := filepath.Join(s.Dir(to), filepath.Base(f.Path))
	src := f.Path
	f.Path = dst
	if err := f.Save(); err != nil {
		f.Path = src
		return fmt.Errorf("moving task to %s: %w", to, err)
	}
	if src != "" && src != dst {
		if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing %s: %w", src, err)
		}
	}
	return nil
}

// Cancel marks the task cancelled and moves it to the backlog.
func (s *Store) Cancel(f *File, reason string) error {
	f.Meta.Cancelled = true
	f.Meta.CancelledAt = s.Timestamp()
	f.Meta.CancellationReason = reason
	return s.Move(f, StateBacklog)
}

// List returns every task in state st, sorted by path.
func (s *Store) List(st State) ([]*File, error) {
	entries, err := os.ReadDir(s.Dir(st))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []*File
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		f, err := Load(filepath.Join(s.Dir(st), e.Name()))
		if err != nil {
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

// Timestamp is the store's current time in RFC 3339 UTC.
func (s *Store) Timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
