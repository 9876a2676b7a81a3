package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/sprite-ai/reviewgate/internal/model"
)

// ErrNoTerminal is returned by Pager.Show when input is not a terminal.
var ErrNoTerminal = errors.New("pager needs an interactive terminal")

// Pager shows plans full screen.
type Pager struct {
	in  *os.File
	out io.Writer
}

// NewPager creates a pager reading keys from in and drawing to out.
func NewPager(in *os.File, out io.Writer) *Pager {
	return &Pager{in: in, out: out}
}

// Show runs the pager until the user quits or ctx is cancelled.
func (p *Pager) Show(ctx context.Context, plan *model.ImplementationPlan) error {
	if p.in == nil || !term.IsTerminal(int(p.in.Fd())) {
		return ErrNoTerminal
	}
	prog := tea.NewProgram(New(plan),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running pager: %w", err)
	}
	return nil
}
