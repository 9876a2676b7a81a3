package input

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
	"unicode"
)

// Outcome is how a countdown ended.
type Outcome int

const (
	OutcomeTimeout Outcome = iota
	OutcomeEnter
	OutcomeCancel
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTimeout:
		return "timeout"
	case OutcomeEnter:
		return "enter"
	case OutcomeCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

const defaultTick = 50 * time.Millisecond

// CountdownOptions configures a countdown.
type CountdownOptions struct {
	Duration  time.Duration
	Message   string
	Options   string
	CancelKey rune          // default 'c'
	Tick      time.Duration // poll interval, default 50ms
	Clock     Clock         // default SystemClock
}

var clearLine = "\r" + strings.Repeat(" ", 60) + "\r"

// Countdown displays a same-line countdown and waits for Enter, the cancel
// key, or the deadline. Other keys are ignored. Ctrl+C and ctx cancellation
// return ErrInterrupted.
func Countdown(ctx context.Context, src KeySource, out io.Writer, opts CountdownOptions) (Outcome, error) {
	if opts.Duration <= 0 {
		return OutcomeTimeout, fmt.Errorf("%w, got %s", ErrInvalidDuration, opts.Duration)
	}
	if opts.CancelKey == 0 {
		opts.CancelKey = 'c'
	}
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	cancelKey := unicode.ToLower(opts.CancelKey)

	fmt.Fprintf(out, "\n%s\n%s\n\n", opts.Message, opts.Options)

	restore, err := src.Open()
	if err != nil {
		return OutcomeTimeout, fmt.Errorf("opening input: %w", err)
	}
	defer restore()

	deadline := opts.Clock.Now().Add(opts.Duration)
	for {
		if ctx.Err() != nil {
			fmt.Fprint(out, clearLine+"Interrupted.\n\n")
			return OutcomeTimeout, ErrInterrupted
		}

		remaining := deadline.Sub(opts.Clock.Now())
		if remaining <= 0 {
			fmt.Fprint(out, clearLine+"Auto-proceeding...\n\n")
			return OutcomeTimeout, nil
		}
		fmt.Fprintf(out, "\rCountdown: %ds remaining... ", secondsLeft(remaining))

		key, ok, err := src.Poll()
		if err != nil {
			return OutcomeTimeout, fmt.Errorf("reading input: %w", err)
		}
		if ok {
			switch k := unicode.ToLower(key); {
			case k == ctrlC:
				fmt.Fprint(out, clearLine+"Interrupted.\n\n")
				return OutcomeTimeout, ErrInterrupted
			case k == '\r' || k == '\n':
				fmt.Fprint(out, clearLine+"Escalating to full review...\n\n")
				return OutcomeEnter, nil
			case k == cancelKey:
				fmt.Fprint(out, clearLine+"Task cancelled.\n\n")
				return OutcomeCancel, nil
			default:
				continue
			}
		}

		opts.Clock.Sleep(opts.Tick)
	}
}

// secondsLeft rounds the remaining time up to whole seconds for display.
func secondsLeft(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}
