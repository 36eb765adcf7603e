// Package runner executes external commands with captured output and a
// timeout that escalates from an interrupt to a kill.
package runner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
)

// DefaultGracePeriod is how long a process may take to exit after the
// interrupt before it is killed.
const DefaultGracePeriod = 5 * time.Second

// Options tunes a single Run.
type Options struct {
	Dir           string
	Env           []string // appended to the parent environment
	Timeout       time.Duration
	CaptureStderr bool
}

// Result is the outcome of a process that was started. A non-zero ExitCode is
// not an error at this layer.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Signal   string // set when the process was terminated by a signal
	TimedOut bool
}

// Success reports whether the process exited with code 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Signal == ""
}

// Combined returns stdout followed by stderr.
func (r *Result) Combined() string {
	if r.Stdout == "" {
		return r.Stderr
	}
	if r.Stderr == "" {
		return r.Stdout
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor is the subset of Runner the rest of the module depends on.
type Executor interface {
	Run(ctx context.Context, command string, args []string, opts Options) (*Result, error)
}

// Runner runs one subprocess per Run call.
type Runner struct {
	logger      *slog.Logger
	gracePeriod time.Duration
}

// New creates a Runner. A nil logger discards output.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{logger: logger, gracePeriod: DefaultGracePeriod}
}

// WithGracePeriod overrides the interrupt-to-kill window.
func (r *Runner) WithGracePeriod(d time.Duration) *Runner {
	r.gracePeriod = d
	return r
}

// Run starts command and waits for it to exit. It only fails when the process
// cannot be started. Cancelling ctx behaves like the timeout firing.
func (r *Runner) Run(ctx context.Context, command string, args []string, opts Options) (*Result, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = opts.Dir
	if len(opts.Env) > 0 {
		cmd.Env = append(os.Environ(), opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, apperror.SpawnFailed(command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, apperror.SpawnFailed(command, err)
	}
	var stderr io.ReadCloser
	if opts.CaptureStderr {
		if stderr, err = cmd.StderrPipe(); err != nil {
			return nil, apperror.SpawnFailed(command, err)
		}
	} else {
		cmd.Stderr = os.Stderr
	}

	r.logger.Debug("Starting process", "command", command, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return nil, apperror.SpawnFailed(command, err)
	}
	stdin.Close()

	var stdoutBuf, stderrBuf strings.Builder
	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		readLines(stdout, &stdoutBuf, func(line string) {
			r.logger.Debug("Process output", "command", command, "stream", "stdout", "line", line)
		})
	}()
	if stderr != nil {
		readers.Add(1)
		go func() {
			defer readers.Done()
			readLines(stderr, &stderrBuf, func(line string) {
				r.logger.Debug("Process output", "command", command, "stream", "stderr", "line", line)
			})
		}()
	}

	// Pipes must be drained before Wait closes them.
	done := make(chan error, 1)
	go func() {
		readers.Wait()
		done <- cmd.Wait()
	}()

	var deadline <-chan time.Time
	if opts.Timeout > 0 {
		timer := time.NewTimer(opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var (
		waitErr  error
		timedOut bool
		killer   *time.Timer
	)
wait:
	for {
		select {
		case waitErr = <-done:
			break wait
		case <-deadline:
			deadline = nil
			timedOut = true
			if killer == nil {
				killer = r.interrupt(cmd, command, "timeout")
			}
		case <-ctx.Done():
			ctx = context.Background()
			if killer == nil {
				killer = r.interrupt(cmd, command, "context cancelled")
			}
		}
	}
	if killer != nil {
		killer.Stop()
	}

	result := &Result{
		ExitCode: exitCode(cmd, waitErr),
		Stdout:   strings.TrimRight(stdoutBuf.String(), "\n"),
		Stderr:   strings.TrimRight(stderrBuf.String(), "\n"),
		Signal:   exitSignal(cmd),
		TimedOut: timedOut,
	}
	r.logger.Debug("Process exited", "command", command, "exit_code", result.ExitCode, "signal", result.Signal, "timed_out", timedOut)
	return result, nil
}

// interrupt asks the process to stop and arms a kill after the grace period.
func (r *Runner) interrupt(cmd *exec.Cmd, command, reason string) *time.Timer {
	r.logger.Debug("Interrupting process", "command", command, "reason", reason)
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		r.logger.Debug("Failed to interrupt process", "command", command, "error", err)
	}
	return time.AfterFunc(r.gracePeriod, func() {
		r.logger.Warn("Process did not exit within grace period, killing", "command", command)
		_ = cmd.Process.Kill()
	})
}

func readLines(pipe io.Reader, buffer *strings.Builder, onLine func(string)) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buffer.WriteString(line + "\n")
		onLine(line)
	}
}

func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func exitSignal(cmd *exec.Cmd) string {
	if cmd.ProcessState == nil {
		return ""
	}
	if status, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal().String()
	}
	return ""
}
