package modify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sprite-ai/reviewgate/internal/fileutil"
)

// ErrSessionNotFound is returned for a missing or unreadable session file.
var ErrSessionNotFound = errors.New("modification session not found")

// Record is the on-disk form of a session.
type Record struct {
	Metadata SessionMetadata `json:"metadata"`
	Changes  []Change        `json:"changes"`
}

// SessionStore persists sessions under tasks/modifications/{task}/.
type SessionStore struct {
	dir    string
	logger *zap.Logger
}

// NewSessionStore creates a store rooted at dir.
func NewSessionStore(dir string, logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{dir: dir, logger: logger}
}

func (s *SessionStore) taskDir(taskID string) string {
	return filepath.Join(s.dir, taskID)
}

func (s *SessionStore) path(taskID, sessionID string) string {
	return filepath.Join(s.taskDir(taskID), sessionID+".json")
}

// Save writes the session and returns its path.
func (s *SessionStore) Save(sess *Session) (string, error) {
	path := s.path(sess.TaskID, sess.ID)
	rec := Record{Metadata: sess.Metadata(), Changes: sess.Changes()}
	if rec.Changes == nil {
		rec.Changes = []Change{}
	}
	if err := fileutil.WriteJSON(path, rec); err != nil {
		return "", fmt.Errorf("saving session %s: %w", sess.ID, err)
	}
	return path, nil
}

// SaveSummary writes the human-readable change summary next to the session.
func (s *SessionStore) SaveSummary(sess *Session) (string, error) {
	path := filepath.Join(s.taskDir(sess.TaskID), sess.ID+"_summary.txt")
	var b strings.Builder
	fmt.Fprintf(&b, "Modification Session: %s\n", sess.ID)
	fmt.Fprintf(&b, "Task: %s\n", sess.TaskID)
	fmt.Fprintf(&b, "State: %s\n", sess.State())
	fmt.Fprintf(&b, "Duration: %.1fs\n\n", sess.Duration().Seconds())
	b.WriteString(sess.Tracker().Summary())
	b.WriteByte('\n')
	if err := fileutil.WriteAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("saving session summary: %w", err)
	}
	return path, nil
}

// Load reads one session.
func (s *SessionStore) Load(taskID, sessionID string) (*Record, error) {
	path := s.path(taskID, sessionID)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("corrupt modification session", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return &rec, nil
}

// List returns the IDs of a task's sessions, oldest first.
func (s *SessionStore) List(taskID string) ([]string, error) {
	entries, err := os.ReadDir(s.taskDir(taskID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Latest returns the most recent session of a task.
func (s *SessionStore) Latest(taskID string) (*Record, error) {
	ids, err := s.List(taskID)
	if err != nil {
		return nil, err
	}
	for i := len(ids) - 1; i >= 0; i-- {
		if rec, err := s.Load(taskID, ids[i]); err == nil {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrSessionNotFound, taskID)
}

// Delete removes a session and its summary.
func (s *SessionStore) Delete(taskID, sessionID string) error {
	if err := os.Remove(s.path(taskID, sessionID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return err
	}
	os.Remove(filepath.Join(s.taskDir(taskID), sessionID+"_summary.txt"))
	return nil
}
