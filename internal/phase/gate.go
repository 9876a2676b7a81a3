package phase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Gate keys used in configuration.
const (
	GateArchitecturalReview = "architectural_review"
	GateImplementation      = "implementation"
	GateTesting             = "testing"
	GateFixLoop             = "fix_loop"
	GateCodeReview          = "code_review"
)

// GateResult is a gate's verdict.
type GateResult struct {
	Passed  bool   `json:"passed"`
	Details string `json:"details,omitempty"`
}

// Gate is an opaque quality gate run for a phase. An error means the gate
// could not run at all; a failing check is a result with Passed false.
type Gate interface {
	Run(ctx context.Context, taskID string) (GateResult, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, taskID string) (GateResult, error)

// Run calls f.
func (f GateFunc) Run(ctx context.Context, taskID string) (GateResult, error) { return f(ctx, taskID) }

// CommandGate runs a shell command. A zero exit passes. The task ID is
// exported as REVIEWGATE_TASK_ID.
type CommandGate struct {
	Command string
	Dir     string
}

// Run executes the command with sh -c.
func (g CommandGate) Run(ctx context.Context, taskID string) (GateResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", g.Command)
	cmd.Dir = g.Dir
	cmd.Env = append(os.Environ(), "REVIEWGATE_TASK_ID="+taskID)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	details := strings.TrimSpace(out.String())
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return GateResult{Passed: true, Details: details}, nil
	case errors.As(err, &exitErr):
		if details == "" {
			details = fmt.Sprintf("exit status %d", exitErr.ExitCode())
		}
		return GateResult{Passed: false, Details: details}, nil
	default:
		return GateResult{}, fmt.Errorf("running gate %q: %w", g.Command, err)
	}
}

// CommandGates builds gates from configured commands. Blank commands are
// skipped.
func CommandGates(commands map[string]string, dir string) map[string]Gate {
	gates := make(map[string]Gate, len(commands))
	for key, c := range commands {
		if strings.TrimSpace(c) == "" {
			continue
		}
		gates[key] = CommandGate{Command: c, Dir: dir}
	}
	return gates
}
