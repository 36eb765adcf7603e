package audio

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
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/runner"
)

const (
	// DefaultGracePeriod is how long ffmpeg gets to finalize the file after a
	// timed stop before it is killed.
	DefaultGracePeriod = 5 * time.Second
	// DefaultStopWatchdog is how long ffmpeg gets after a keypress stop.
	DefaultStopWatchdog = 1 * time.Second
	// NonInteractiveBuffer is added to the maximum duration when ffmpeg is
	// expected to stop on its own.
	NonInteractiveBuffer = 10 * time.Second
)

// Controller drives recording sessions. Interactive sessions end on the first
// of: ENTER (stopped), C or Ctrl+C (cancelled), the duration limit (stopped),
// or ffmpeg exiting.
type Controller struct {
	exec   runner.Executor
	input  KeyInput
	logger *slog.Logger
	// output receives ffmpeg's forwarded stdout and stderr lines.
	output *slog.Logger

	gracePeriod  time.Duration
	stopWatchdog time.Duration

	mu    sync.RWMutex
	state State
}

// NewController creates a controller. input may be nil, in which case
// interactive sessions can only end by timeout, interruption or ffmpeg exiting.
func NewController(exec runner.Executor, input KeyInput, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{
		exec:         exec,
		input:        input,
		logger:       logger,
		output:       logger,
		gracePeriod:  DefaultGracePeriod,
		stopWatchdog: DefaultStopWatchdog,
		state:        StateIdle,
	}
}

// WithTimings overrides the kill windows used after a timed stop and after a
// keypress stop.
func (c *Controller) WithTimings(gracePeriod, stopWatchdog time.Duration) *Controller {
	c.gracePeriod = gracePeriod
	c.stopWatchdog = stopWatchdog
	return c
}

// WithOutputLogger sends ffmpeg's output lines to l instead of the
// controller's logger.
func (c *Controller) WithOutputLogger(l *slog.Logger) *Controller {
	if l != nil {
		c.output = l
	}
	return c
}

// State returns the state of the most recent session.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// session holds everything owned by one Record call.
type session struct {
	logger  *slog.Logger
	cmd     *exec.Cmd
	command string

	// finished is set by the first trigger that resolves the session.
	finished atomic.Bool
	// exited is closed once the process has been reaped.
	exited chan struct{}

	stderrMu sync.Mutex
	stderr   strings.Builder

	durationTimer *time.Timer
	killTimer     *time.Timer
	stopRequested bool

	input        KeyInput
	rawAttempted bool
	unsubscribe  func()
	cleanupOnce  sync.Once
}

// finish marks the session resolved and reports whether this call did it.
func (s *session) finish() bool {
	return s.finished.CompareAndSwap(false, true)
}

// cleanup releases the timer and the key input. It is safe to call more than once.
func (s *session) cleanup() {
	s.cleanupOnce.Do(func() {
		if s.durationTimer != nil {
			s.durationTimer.Stop()
		}
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.rawAttempted {
			if err := s.input.Restore(); err != nil {
				s.logger.Debug("Failed to restore terminal mode", "error", err)
			}
		}
	})
}

// requestStop interrupts ffmpeg and kills it if it is still running after d.
// The returned timer is not tied to the session's resolution.
func (s *session) requestStop(d time.Duration) *time.Timer {
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		s.logger.Debug("Failed to interrupt recording process", "error", err)
	}
	return time.AfterFunc(d, func() {
		select {
		case <-s.exited:
			return
		default:
		}
		s.logger.Warn("Recording process did not exit, killing", "command", s.command, "after", d)
		if err := s.cmd.Process.Kill(); err != nil {
			s.logger.Debug("Failed to kill recording process", "error", err)
		}
	})
}

func (s *session) stderrText() string {
	s.stderrMu.Lock()
	defer s.stderrMu.Unlock()
	return strings.TrimSpace(s.stderr.String())
}

// Record runs ffmpegPath with args until the session resolves. It returns
// OutcomeStopped or OutcomeCancelled, or an *apperror.Error of kind recording.
//
// ENTER and the cancel keys resolve immediately; ffmpeg is reaped in the
// background by a watchdog. Cancelling ctx stops the recording like the
// duration limit does and still yields OutcomeStopped.
func (c *Controller) Record(ctx context.Context, ffmpegPath string, args []string, maxDuration time.Duration) (Outcome, error) {
	s := &session{
		logger:  c.logger,
		command: ffmpegPath,
		exited:  make(chan struct{}),
		input:   c.input,
	}

	cmd := exec.Command(ffmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return c.fail(s, apperror.SpawnFailed(ffmpegPath, err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return c.fail(s, apperror.SpawnFailed(ffmpegPath, err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return c.fail(s, apperror.SpawnFailed(ffmpegPath, err))
	}

	c.logger.Debug("Starting recording process", "command", ffmpegPath, "args", strings.Join(args, " "))
	if err := cmd.Start(); err != nil {
		return c.fail(s, apperror.SpawnFailed(ffmpegPath, err))
	}
	s.cmd = cmd
	defer stdin.Close()
	c.setState(StateRecording)
	c.logger.Info("Recording started", "pid", cmd.Process.Pid, "max_duration", maxDuration)
	if c.input != nil {
		c.logger.Info("Recording... Press ENTER to stop, C to cancel")
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		forwardLines(stdout, func(line string) {
			c.output.Debug("FFmpeg output", "stream", "stdout", "line", line)
		})
	}()
	go func() {
		defer readers.Done()
		forwardLines(stderr, func(line string) {
			s.stderrMu.Lock()
			s.stderr.WriteString(line + "\n")
			s.stderrMu.Unlock()
			c.output.Debug("FFmpeg output", "stream", "stderr", "line", line)
		})
	}()

	waitCh := make(chan error, 1)
	go func() {
		readers.Wait()
		err := cmd.Wait()
		close(s.exited)
		waitCh <- err
	}()

	var durationC <-chan time.Time
	if maxDuration > 0 {
		s.durationTimer = time.NewTimer(maxDuration)
		durationC = s.durationTimer.C
	}

	var keys <-chan byte
	if c.input != nil {
		s.rawAttempted = true
		if err := c.input.EnableRaw(); err != nil {
			c.logger.Warn("Raw keyboard input unavailable, use Ctrl+C to stop recording", "error", err)
		}
		keys, s.unsubscribe = c.input.Subscribe()
	}

	ctxDone := ctx.Done()
	for {
		select {
		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			switch key {
			case keyCarriageReturn, keyLineFeed:
				if !s.finish() {
					continue
				}
				s.requestStop(c.stopWatchdog)
				return c.resolve(s, OutcomeStopped, "enter")
			case 'c', 'C', keyCtrlC:
				if !s.finish() {
					continue
				}
				s.requestStop(c.stopWatchdog)
				return c.resolve(s, OutcomeCancelled, "cancel key")
			}

		case <-durationC:
			durationC = nil
			if s.finished.Load() {
				continue
			}
			c.logger.Info("Maximum recording time reached, stopping", "max_duration", maxDuration)
			s.stopRequested = true
			s.killTimer = s.requestStop(c.gracePeriod)

		case <-ctxDone:
			ctxDone = nil
			if s.finished.Load() || s.stopRequested {
				continue
			}
			c.logger.Info("Recording interrupted, stopping")
			s.stopRequested = true
			s.killTimer = s.requestStop(c.gracePeriod)

		case waitErr := <-waitCh:
			if !s.finish() {
				continue
			}
			if s.killTimer != nil {
				s.killTimer.Stop()
			}

			var exitErr *exec.ExitError
			if waitErr != nil && !errors.As(waitErr, &exitErr) {
				return c.fail(s, apperror.ProcessError(ffmpegPath, waitErr))
			}

			code := cmd.ProcessState.ExitCode()
			if code == 0 || s.stopRequested || ctx.Err() != nil {
				return c.resolve(s, OutcomeStopped, "process exit")
			}
			return c.fail(s, apperror.NonZeroExit(code, s.stderrText()))
		}
	}
}

// resolve cleans up and reports a successful outcome.
func (c *Controller) resolve(s *session, outcome Outcome, trigger string) (Outcome, error) {
	s.cleanup()
	c.setState(outcome.State())
	c.logger.Info("Recording finished", "outcome", outcome.String(), "trigger", trigger)
	return outcome, nil
}

// fail cleans up and reports err.
func (c *Controller) fail(s *session, err *apperror.Error) (Outcome, error) {
	s.finish()
	s.cleanup()
	c.setState(StateFailed)
	c.logger.Info("Recording finished", "outcome", "failed", "error", err)
	return 0, err
}

// RecordNonInteractive records without keyboard control. ffmpeg is expected
// to stop by itself at maxDuration; any non-zero exit is a failure.
func (c *Controller) RecordNonInteractive(ctx context.Context, ffmpegPath string, args []string, maxDuration time.Duration) (Outcome, error) {
	c.setState(StateRecording)
	c.logger.Info("Recording started", "max_duration", maxDuration, "interactive", false)

	res, err := c.exec.Run(ctx, ffmpegPath, args, runner.Options{
		Timeout:       maxDuration + NonInteractiveBuffer,
		CaptureStderr: true,
	})
	if err != nil {
		c.setState(StateFailed)
		return 0, err
	}
	if res.TimedOut {
		c.setState(StateFailed)
		return 0, apperror.RecordingTimeout(int((maxDuration + NonInteractiveBuffer) / time.Second))
	}
	if res.ExitCode != 0 {
		c.setState(StateFailed)
		return 0, apperror.NonZeroExit(res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	c.setState(StateStopped)
	c.logger.Info("Recording finished", "outcome", OutcomeStopped.String(), "trigger", "process exit")
	return OutcomeStopped, nil
}

func forwardLines(pipe io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}
}
