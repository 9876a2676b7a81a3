package input

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

type lineResult struct {
	line string
	err  error
}

// LineReader reads lines from r on demand. A single goroutine performs the
// blocking reads; it only reads when a caller asks for a line, so switching
// to raw key input between prompts is safe.
type LineReader struct {
	r       *bufio.Reader
	req     chan struct{}
	resp    chan lineResult
	done    chan struct{}
	start   sync.Once
	stop    sync.Once
	pending bool
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:    bufio.NewReader(r),
		req:  make(chan struct{}),
		resp: make(chan lineResult, 1),
		done: make(chan struct{}),
	}
}

func (l *LineReader) loop() {
	var sticky error
	for {
		select {
		case <-l.done:
			return
		case <-l.req:
		}
		if sticky != nil {
			l.resp <- lineResult{err: sticky}
			continue
		}
		line, err := l.r.ReadString('\n')
		if err != nil && line != "" {
			// Deliver a final unterminated line before the error.
			err = nil
		}
		if err != nil {
			sticky = err
		}
		l.resp <- lineResult{line: strings.TrimRight(line, "\r\n"), err: err}
	}
}

func (l *LineReader) request() bool {
	l.start.Do(func() { go l.loop() })
	if l.pending {
		return true
	}
	select {
	case l.req <- struct{}{}:
		l.pending = true
		return true
	case <-l.done:
		return false
	}
}

// ReadLine blocks until a line is available. It returns ErrInterrupted when
// ctx is cancelled and io.EOF once input is exhausted.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	if !l.request() {
		return "", io.EOF
	}
	select {
	case res := <-l.resp:
		l.pending = false
		return res.line, res.err
	case <-ctx.Done():
		return "", ErrInterrupted
	}
}

// tryLine is the non-blocking form of ReadLine.
func (l *LineReader) tryLine() (lineResult, bool) {
	if !l.request() {
		return lineResult{err: io.EOF}, true
	}
	select {
	case res := <-l.resp:
		l.pending = false
		return res, true
	default:
		return lineResult{}, false
	}
}

// Close stops the reader goroutine once it is idle.
func (l *LineReader) Close() {
	l.stop.Do(func() { close(l.done) })
}

// lineSource adapts a LineReader to KeySource. An empty line is Enter and any
// other line yields its first character.
type lineSource struct {
	lines     *LineReader
	exhausted bool
}

func (s *lineSource) Open() (func() error, error) {
	return func() error { return nil }, nil
}

func (s *lineSource) Poll() (rune, bool, error) {
	if s.exhausted {
		return 0, false, nil
	}
	res, ok := s.lines.tryLine()
	if !ok {
		return 0, false, nil
	}
	if res.err != nil {
		// Exhausted input behaves like no key ever being pressed.
		s.exhausted = true
		return 0, false, nil
	}
	if res.line == "" {
		return '\n', true, nil
	}
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(res.line))
	if r == utf8.RuneError {
		return '\n', true, nil
	}
	return unicode.ToLower(r), true, nil
}
