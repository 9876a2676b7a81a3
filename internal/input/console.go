package input

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgCyan)
)

// Console is the line-oriented prompt surface shared by the review, modify
// and Q&A flows. It also hands out the key source used by countdowns.
type Console struct {
	in    io.Reader
	out   io.Writer
	lines *LineReader

	keysOnce sync.Once
	keys     KeySource
}

// NewConsole creates a console over in and out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out, lines: NewLineReader(in)}
}

// Out is the console's writer.
func (c *Console) Out() io.Writer { return c.out }

// Prompt prints prompt and reads one line with surrounding space trimmed.
func (c *Console) Prompt(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.lines.ReadLine(ctx)
	if err != nil {
		if err == ErrInterrupted {
			fmt.Fprintln(c.out)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	ans, err := c.Prompt(ctx, prompt)
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

// Keys returns the key source for countdowns: raw mode when the input is a
// terminal, line mode otherwise. The choice is made once.
func (c *Console) Keys() KeySource {
	c.keysOnce.Do(func() {
		if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			c.keys = rawSource(f)
		}
		if c.keys == nil {
			c.keys = &lineSource{lines: c.lines}
		}
	})
	return c.keys
}

// Width returns the output terminal width, or 80 when unknown.
func (c *Console) Width() int {
	if f, ok := c.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

func (c *Console) Printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) Println(args ...any) {
	fmt.Fprintln(c.out, args...)
}

// Success prints a green line.
func (c *Console) Success(format string, args ...any) {
	okColor.Fprintf(c.out, format+"\n", args...)
}

// Warn prints a yellow line.
func (c *Console) Warn(format string, args ...any) {
	warnColor.Fprintf(c.out, format+"\n", args...)
}

// Fail prints a red line.
func (c *Console) Fail(format string, args ...any) {
	failColor.Fprintf(c.out, format+"\n", args...)
}

// Info prints a cyan line.
func (c *Console) Info(format string, args ...any) {
	infoColor.Fprintf(c.out, format+"\n", args...)
}

// Close releases the background reader.
func (c *Console) Close() {
	c.lines.Close()
}
