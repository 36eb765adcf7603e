package play

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/fsutil"
	"github.com/audiolibrelab/miccapture/internal/runner"
	"github.com/spf13/afero"
)

// Players in order of preference.
var Players = []string{"ffplay", "afplay", "mpv", "vlc"}

type Player struct {
	exec     runner.Executor
	fs       afero.Fs
	command  string
	logger   *slog.Logger
	lookPath func(string) (string, error)
}

// New creates a player. command pins a specific player; empty means the
// first of Players found on PATH.
func New(exec runner.Executor, fs afero.Fs, command string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Player{exec: exec, fs: fs, command: command, logger: logger, lookPath: lookPath}
}

func lookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Play blocks until the player exits.
func (p *Player) Play(ctx context.Context, audioFile string) error {
	if _, res := fsutil.Stat(p.fs, audioFile); res.Status != fsutil.StatusOK {
		return apperror.FileNotFound(audioFile)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return fmt.Errorf("no suitable audio player found: %w", err)
	}

	args := playerArgs(player, audioFile)
	p.logger.Info("Playing", "file", audioFile, "player", player)

	res, err := p.exec.Run(ctx, player, args, runner.Options{CaptureStderr: true})
	if err != nil {
		return fmt.Errorf("playback failed with %s: %w", player, err)
	}
	if !res.Success() {
		return fmt.Errorf("playback failed with %s: exit code %d: %s", player, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	p.logger.Info("Playback completed", "file", audioFile)
	return nil
}

func playerArgs(player, audioFile string) []string {
	switch filepath.Base(player) {
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "error", audioFile}
	case "mpv":
		return []string{"--no-video", audioFile}
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", audioFile}
	default:
		return []string{audioFile}
	}
}

func (p *Player) findAudioPlayer() (string, error) {
	if p.command != "" {
		if _, err := p.lookPath(p.command); err != nil {
			return "", fmt.Errorf("configured player %s: %w", p.command, err)
		}
		return p.command, nil
	}

	for _, player := range Players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(Players, ", "))
}
