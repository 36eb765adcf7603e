package runner

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := New(nil)

	res, err := r.Run(context.Background(), "/bin/sh",
		[]string{"-c", "echo out; echo err >&2; exit 3"},
		Options{CaptureStderr: true})

	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.Equal(t, "out", res.Stdout)
	require.Equal(t, "err", res.Stderr)
	require.False(t, res.Success())
	require.Equal(t, "out\nerr", res.Combined())
}

func TestRunSpawnFailure(t *testing.T) {
	r := New(nil)

	_, err := r.Run(context.Background(), "/definitely/not/a/binary", nil, Options{})

	require.Error(t, err)
	require.True(t, apperror.HasCode(err, apperror.CodeSpawnFailed))
}

func TestRunHonoursDirAndEnv(t *testing.T) {
	r := New(nil)
	dir := t.TempDir()

	res, err := r.Run(context.Background(), "/bin/sh",
		[]string{"-c", `pwd; echo "$MICCAPTURE_TEST"`},
		Options{Dir: dir, Env: []string{"MICCAPTURE_TEST=hello"}, CaptureStderr: true})

	require.NoError(t, err)
	require.True(t, res.Success())
	require.Contains(t, res.Stdout, "hello")
}

func TestRunTimeoutInterruptsProcess(t *testing.T) {
	r := New(nil)

	start := time.Now()
	res, err := r.Run(context.Background(), "/bin/sh",
		[]string{"-c", "exec sleep 30"},
		Options{Timeout: 200 * time.Millisecond, CaptureStderr: true})

	require.NoError(t, err)
	require.True(t, res.TimedOut)
	require.Equal(t, "interrupt", res.Signal)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunTimeoutEscalatesToKill(t *testing.T) {
	r := New(nil).WithGracePeriod(200 * time.Millisecond)

	start := time.Now()
	res, err := r.Run(context.Background(), "/bin/sh",
		[]string{"-c", "trap '' INT; exec sleep 30"},
		Options{Timeout: 200 * time.Millisecond, CaptureStderr: true})

	require.NoError(t, err)
	require.True(t, res.TimedOut)
	require.Equal(t, "killed", res.Signal)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestRunContextCancelStopsProcess(t *testing.T) {
	r := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	res, err := r.Run(ctx, "/bin/sh", []string{"-c", "exec sleep 30"}, Options{CaptureStderr: true})

	require.NoError(t, err)
	require.False(t, res.Success())
	require.False(t, res.TimedOut)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunTimeoutAfterCancelKeepsSingleKillTimer(t *testing.T) {
	logs := &lockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := New(logger).WithGracePeriod(600 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	// The shell finishes its INT handler inside the grace period.
	res, err := r.Run(ctx, "/bin/sh",
		[]string{"-c", "trap 'sleep 0.3; exit 0' INT; while :; do sleep 0.05; done"},
		Options{Timeout: 150 * time.Millisecond, CaptureStderr: true})

	require.NoError(t, err)
	require.True(t, res.TimedOut)
	require.Equal(t, 0, res.ExitCode)

	// Past the grace period of both the cancel and the timeout.
	time.Sleep(900 * time.Millisecond)
	require.False(t, strings.Contains(logs.String(), "killing"), logs.String())
	require.Equal(t, 1, strings.Count(logs.String(), "Interrupting process"))
}
