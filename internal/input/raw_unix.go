//go:build unix

package input

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// rawTerminal reads single bytes from a terminal in raw mode.
type rawTerminal struct {
	f *os.File
}

func rawSource(f *os.File) KeySource {
	return &rawTerminal{f: f}
}

func (t *rawTerminal) Open() (func() error, error) {
	fd := int(t.f.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() error { return term.Restore(fd, state) }, nil
}

func (t *rawTerminal) Poll() (rune, bool, error) {
	fds := []unix.PollFd{{Fd: int32(t.f.Fd()), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, 0)
	if err == unix.EINTR {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if n == 0 || fds[0].Revents&unix.POLLIN == 0 {
		return 0, false, nil
	}
	var buf [1]byte
	if _, err := t.f.Read(buf[:]); err != nil {
		return 0, false, err
	}
	return rune(buf[0]), true, nil
}
