package audio

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPipeInput(t *testing.T) (*StdinInput, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		w.Close()
		r.Close()
	})
	return &StdinInput{file: r}, w
}

func receiveKey(t *testing.T, keys <-chan byte) byte {
	t.Helper()
	select {
	case k := <-keys:
		return k
	case <-time.After(2 * time.Second):
		t.Fatal("no key delivered")
		return 0
	}
}

func TestStdinInput_DeliversToSubscriber(t *testing.T) {
	input, w := newPipeInput(t)

	keys, unsubscribe := input.Subscribe()
	defer unsubscribe()
	_, err := w.Write([]byte{'a'})
	require.NoError(t, err)

	require.Equal(t, byte('a'), receiveKey(t, keys))
}

func TestStdinInput_DropsKeysWhileUnsubscribed(t *testing.T) {
	input, w := newPipeInput(t)

	first, unsubscribe := input.Subscribe()
	_, err := w.Write([]byte{'a'})
	require.NoError(t, err)
	require.Equal(t, byte('a'), receiveKey(t, first))
	unsubscribe()

	_, err = w.Write([]byte{'b'})
	require.NoError(t, err)
	// Give the reader time to consume and drop it.
	time.Sleep(100 * time.Millisecond)

	second, unsubscribe := input.Subscribe()
	defer unsubscribe()
	_, err = w.Write([]byte{'c'})
	require.NoError(t, err)

	require.Equal(t, byte('c'), receiveKey(t, second))
	select {
	case k := <-first:
		t.Fatalf("unsubscribed channel received %q", k)
	default:
	}
}

func TestStdinInput_RawModeNeedsTerminal(t *testing.T) {
	input, _ := newPipeInput(t)

	require.False(t, input.IsTerminal())
	require.ErrorIs(t, input.EnableRaw(), ErrNotTerminal)
	require.NoError(t, input.Restore(), "restore without raw mode does nothing")
	require.NoError(t, input.Restore())
}
