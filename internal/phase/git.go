package phase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoGit is returned when git is not installed or dir is not a repository.
var ErrNoGit = errors.New("git repository not available")

// GitState commits task state after a workflow run.
type GitState interface {
	Root(ctx context.Context) (string, error)
	StateDir(taskID string) string
	Commit(ctx context.Context, taskID, msg string) error
}

// Git is the git CLI implementation of GitState.
type Git struct {
	Dir       string
	TasksDir  string
	StatesDir string
}

// NewGit creates a Git rooted at dir that commits the task and state
// directories.
func NewGit(dir, tasksDir, stateDir string) *Git {
	return &Git{Dir: dir, TasksDir: tasksDir, StatesDir: stateDir}
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return "", ErrNoGit
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// Root returns the repository top level.
func (g *Git) Root(ctx context.Context) (string, error) {
	root, err := g.run(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		if errors.Is(err, ErrNoGit) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrNoGit, err)
	}
	return root, nil
}

// StateDir returns the task's state directory.
func (g *Git) StateDir(taskID string) string {
	return filepath.Join(g.StatesDir, taskID)
}

// Commit stages the task and state directories and commits them. Nothing
// staged is not an error.
func (g *Git) Commit(ctx context.Context, taskID, msg string) error {
	if _, err := g.Root(ctx); err != nil {
		return err
	}
	paths := []string{}
	for _, p := range []string{g.TasksDir, g.StateDir(taskID)} {
		if p == "" {
			continue
		}
		if exists(g.resolve(p)) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	if _, err := g.run(ctx, append([]string{"add", "--all", "--"}, paths...)...); err != nil {
		return err
	}
	if _, err := g.run(ctx, "diff", "--cached", "--quiet"); err == nil {
		return nil
	}
	_, err := g.run(ctx, "commit", "--quiet", "--no-verify", "-m", msg)
	return err
}

func (g *Git) resolve(p string) string {
	if filepath.IsAbs(p) || g.Dir == "" {
		return p
	}
	return filepath.Join(g.Dir, p)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
