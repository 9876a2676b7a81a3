// Package input reads user keystrokes and lines for the interactive review
// flows. Terminals are read in raw mode with a zero-timeout poll; anything
// else (pipes, files, non-Unix consoles) falls back to line input.
package input

import (
	"errors"
	"time"
)

var (
	// ErrInterrupted is returned when the user presses Ctrl+C or the context
	// is cancelled while waiting for input.
	ErrInterrupted = errors.New("interrupted")

	// ErrInvalidDuration is returned for a non-positive countdown duration.
	ErrInvalidDuration = errors.New("countdown duration must be positive")
)

// ctrlC is the byte a raw terminal delivers for Ctrl+C.
const ctrlC = 0x03

// KeySource delivers single keystrokes without blocking.
type KeySource interface {
	// Open prepares the source. The returned restore func must be called on
	// every exit path.
	Open() (restore func() error, err error)
	// Poll returns the next key if one is available.
	Poll() (key rune, ok bool, err error)
}

// Clock is the time source used by the countdown.
type Clock interface {
	Now() time.Time
	Sleep(time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }
