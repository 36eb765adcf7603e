// Package prefs persists the user's saved audio device selection.
package prefs

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/audiolibrelab/miccapture/internal/audio"
	"github.com/audiolibrelab/miccapture/internal/fsutil"
	"github.com/spf13/afero"
)

// FileName is the name of the preferences file inside the preferences directory.
const FileName = "audio-device.json"

const (
	dirMode  = 0o700
	fileMode = 0o600
)

// Store reads and writes audio-device.json in one directory.
type Store struct {
	fs     afero.Fs
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at dir. A nil logger discards output.
func New(fs afero.Fs, dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{fs: fs, dir: dir, logger: logger}
}

// Dir returns the preferences directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of the preferences file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Save writes cfg, creating the directory if needed.
func (s *Store) Save(cfg audio.DeviceConfig) error {
	if err := s.fs.MkdirAll(s.dir, dirMode); err != nil {
		return fmt.Errorf("create preferences directory %s: %w", s.dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode device config: %w", err)
	}

	if err := afero.WriteFile(s.fs, s.Path(), data, fileMode); err != nil {
		return fmt.Errorf("write %s: %w", s.Path(), err)
	}
	s.logger.Info("Saved audio device", "device", cfg.AudioDevice, "name", cfg.AudioDeviceName, "path", s.Path())
	return nil
}

// Load returns the saved config, or nil when there is none. An unreadable
// or malformed file counts as none and is logged.
func (s *Store) Load() (*audio.DeviceConfig, error) {
	data, res := fsutil.ReadFile(s.fs, s.Path())
	switch res.Status {
	case fsutil.StatusNotFound:
		return nil, nil
	case fsutil.StatusFailed:
		s.logger.Warn("Failed to read audio device preferences", "path", s.Path(), "error", res.Err)
		return nil, nil
	}

	var cfg audio.DeviceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warn("Ignoring malformed audio device preferences", "path", s.Path(), "error", err)
		return nil, nil
	}
	if cfg.AudioDevice == "" {
		s.logger.Warn("Ignoring audio device preferences without a device", "path", s.Path())
		return nil, nil
	}
	return &cfg, nil
}

// Clear removes the saved config. Clearing an absent file is not an error.
func (s *Store) Clear() error {
	res := fsutil.RemoveAll(s.fs, s.Path())
	if res.Status == fsutil.StatusFailed {
		return fmt.Errorf("remove %s: %w", s.Path(), res.Err)
	}
	return nil
}
