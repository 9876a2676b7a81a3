package input

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolePrompt(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("  a  \r\nsecond"), &out)
	defer c.Close()

	got, err := c.Prompt(context.Background(), "Your choice: ")
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	got, err = c.Prompt(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	_, err = c.Prompt(context.Background(), "> ")
	assert.ErrorIs(t, err, io.EOF)
	_, err = c.Prompt(context.Background(), "> ")
	assert.ErrorIs(t, err, io.EOF)

	assert.Equal(t, "Your choice: > > > ", out.String())
}

func TestConsoleConfirm(t *testing.T) {
	c := NewConsole(strings.NewReader("YES\nn\n\n"), io.Discard)
	defer c.Close()
	for _, want := range []bool{true, false, false} {
		got, err := c.Confirm(context.Background(), "? ")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestConsolePromptInterrupted(t *testing.T) {
	r, w := io.Pipe()
	c := NewConsole(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Prompt(ctx, "> ")
	assert.ErrorIs(t, err, ErrInterrupted)

	// The pending read completes once input arrives and is not lost.
	go w.Write([]byte("late\n"))
	got, err := c.Prompt(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "late", got)

	w.Close()
	c.Close()
}

func TestLineSourceKeys(t *testing.T) {
	c := NewConsole(strings.NewReader("\nCancel\n"), io.Discard)
	defer c.Close()
	src := c.Keys()

	var keys []rune
	deadline := time.Now().Add(time.Second)
	for len(keys) < 2 && time.Now().Before(deadline) {
		k, ok, err := src.Poll()
		require.NoError(t, err)
		if ok {
			keys = append(keys, k)
		}
	}
	assert.Equal(t, []rune{'\n', 'c'}, keys)

	// Exhausted input never yields a key.
	for i := 0; i < 10; i++ {
		_, ok, err := src.Poll()
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestConsoleWidthDefault(t *testing.T) {
	c := NewConsole(strings.NewReader(""), &bytes.Buffer{})
	defer c.Close()
	assert.Equal(t, 80, c.Width())
}
