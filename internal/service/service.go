package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/audio"
	"github.com/audiolibrelab/miccapture/internal/fsutil"
	"github.com/audiolibrelab/miccapture/internal/media"
	"github.com/spf13/afero"
)

const (
	// DefaultMaxRecordingTime applies when Options leaves it unset.
	DefaultMaxRecordingTime = 300 * time.Second

	workspacePrefix = "miccapture"
)

// DeviceCatalog resolves and checks capture devices.
type DeviceCatalog interface {
	ValidateDevice(ctx context.Context, index string) bool
	DetectBestDevice(ctx context.Context) string
}

// Recorder runs one ffmpeg recording to completion.
type Recorder interface {
	Record(ctx context.Context, ffmpegPath string, args []string, maxDuration time.Duration) (audio.Outcome, error)
	RecordNonInteractive(ctx context.Context, ffmpegPath string, args []string, maxDuration time.Duration) (audio.Outcome, error)
}

// FileValidator checks a produced or supplied audio file.
type FileValidator interface {
	Validate(path string) (*media.Metadata, error)
}

// DeviceStore holds a saved device selection.
type DeviceStore interface {
	Load() (*audio.DeviceConfig, error)
	Dir() string
}

// Options controls one ProcessAudio call.
type Options struct {
	// InputFile skips recording and only validates the file.
	InputFile string
	// DryRun logs what would happen without touching devices or files.
	DryRun bool
	// AudioDevice is an explicit device index.
	AudioDevice string
	// OutputDir receives the recording; empty means the working directory.
	OutputDir        string
	MaxRecordingTime time.Duration
	KeepTempFiles    bool
	Interactive      bool
}

// ProcessingResult is what ProcessAudio produced. AudioFilePath is empty
// when the recording was cancelled.
type ProcessingResult struct {
	AudioFilePath string              `json:"audioFilePath,omitempty" yaml:"audio_file_path,omitempty"`
	Cancelled     bool                `json:"cancelled" yaml:"cancelled"`
	Metadata      *media.Metadata     `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Device        *audio.DeviceConfig `json:"device,omitempty" yaml:"device,omitempty"`
	// TempDir is set when temporary files were kept.
	TempDir string `json:"tempDir,omitempty" yaml:"temp_dir,omitempty"`
}

// Deps wires a Service.
type Deps struct {
	FS        afero.Fs
	Catalog   DeviceCatalog
	Recorder  Recorder
	Validator FileValidator
	// Prefs is consulted when no device is given; nil means auto-detect.
	Prefs DeviceStore

	// FFmpegPath is called once per recording.
	FFmpegPath func() string
	SampleRate int
	Channels   int
	// TempDir is the parent of recording workspaces; empty means the system temp dir.
	TempDir string

	Logger *slog.Logger
	Now    func() time.Time
}

// Service records, validates and stores audio.
type Service struct {
	deps   Deps
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if deps.FFmpegPath == nil {
		deps.FFmpegPath = func() string { return "ffmpeg" }
	}
	if deps.SampleRate == 0 {
		deps.SampleRate = audio.DefaultSampleRate
	}
	if deps.Channels == 0 {
		deps.Channels = audio.DefaultChannels
	}
	return &Service{deps: deps, logger: logger, now: now}
}

// ProcessAudio validates opts.InputFile, or records a new file and copies it
// to opts.OutputDir. Temporary files are removed before it returns unless
// opts.KeepTempFiles is set.
func (s *Service) ProcessAudio(ctx context.Context, opts Options) (*ProcessingResult, error) {
	start := s.now()

	if opts.DryRun {
		s.logger.Info("Dry run, nothing will be recorded",
			"input_file", opts.InputFile,
			"audio_device", opts.AudioDevice,
			"output_dir", opts.OutputDir,
			"max_recording_time", opts.MaxRecordingTime,
			"interactive", opts.Interactive)
		return &ProcessingResult{}, nil
	}

	if opts.InputFile != "" {
		meta, err := s.deps.Validator.Validate(opts.InputFile)
		if err != nil {
			return nil, err
		}
		meta.ProcessingTime = s.now().Sub(start)
		return &ProcessingResult{AudioFilePath: opts.InputFile, Metadata: meta}, nil
	}

	maxDuration := opts.MaxRecordingTime
	if maxDuration == 0 {
		maxDuration = DefaultMaxRecordingTime
	}
	if maxDuration < 0 {
		return nil, apperror.InvalidConfig("maxRecordingTime", opts.MaxRecordingTime.String(), "must be > 0")
	}

	device, err := s.resolveDevice(ctx, opts.AudioDevice)
	if err != nil {
		return nil, err
	}

	return s.record(ctx, opts, device, maxDuration, start)
}

// resolveDevice picks the device in priority order: explicit index, saved
// preferences, auto-detection.
func (s *Service) resolveDevice(ctx context.Context, explicit string) (*audio.DeviceConfig, error) {
	if explicit != "" {
		if !s.deps.Catalog.ValidateDevice(ctx, explicit) {
			return nil, apperror.InvalidDevice(explicit)
		}
		s.logger.Debug("Using requested audio device", "device", explicit)
		return &audio.DeviceConfig{AudioDevice: explicit}, nil
	}

	if s.deps.Prefs != nil {
		saved, err := s.deps.Prefs.Load()
		if err != nil || saved == nil {
			return nil, apperror.MissingDeviceConfig(s.deps.Prefs.Dir())
		}
		s.logger.Debug("Using saved audio device", "device", saved.AudioDevice, "name", saved.AudioDeviceName)
		return saved, nil
	}

	index := s.deps.Catalog.DetectBestDevice(ctx)
	s.logger.Info("Auto-detected audio device", "device", index)
	return &audio.DeviceConfig{AudioDevice: index}, nil
}

func (s *Service) record(ctx context.Context, opts Options, device *audio.DeviceConfig, maxDuration time.Duration, start time.Time) (result *ProcessingResult, err error) {
	fs := s.deps.FS

	workspace, err := fsutil.CreateWorkspace(fs, s.deps.TempDir, workspacePrefix, start)
	if err != nil {
		return nil, err
	}
	defer func() {
		if opts.KeepTempFiles {
			s.logger.Info("Keeping temporary files", "dir", workspace)
			if result != nil {
				result.TempDir = workspace
			}
			return
		}
		if res := fsutil.RemoveAll(fs, workspace); res.Status == fsutil.StatusFailed {
			s.logger.Warn("Failed to clean up temporary files", "dir", workspace, "error", res.Err)
		}
	}()

	settings := audio.RecordSettings{
		DeviceIndex: device.AudioDevice,
		MaxDuration: maxDuration,
		SampleRate:  s.deps.SampleRate,
		Channels:    s.deps.Channels,
		OutputPath:  filepath.Join(workspace, fmt.Sprintf("recording-%s.wav", fsutil.Timestamp(start))),
	}
	if device.SampleRate > 0 {
		settings.SampleRate = device.SampleRate
	}
	if device.Channels > 0 {
		settings.Channels = device.Channels
	}

	ffmpegPath := s.deps.FFmpegPath()
	args := audio.RecordArgs(settings)
	s.logger.Info("Recording", "device", device.AudioDevice, "output", settings.OutputPath,
		"max_duration", maxDuration, "interactive", opts.Interactive)

	var outcome audio.Outcome
	if opts.Interactive {
		outcome, err = s.deps.Recorder.Record(ctx, ffmpegPath, args, maxDuration)
	} else {
		outcome, err = s.deps.Recorder.RecordNonInteractive(ctx, ffmpegPath, args, maxDuration)
	}
	if err != nil {
		return nil, err
	}
	if outcome == audio.OutcomeCancelled {
		s.logger.Info("Recording cancelled")
		return &ProcessingResult{Cancelled: true, Device: device}, nil
	}

	meta, err := s.deps.Validator.Validate(settings.OutputPath)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}
	outputDir = fsutil.ExpandHome(outputDir)
	dst, err := fsutil.UniquePath(fs, outputDir, filepath.Base(settings.OutputPath))
	if err != nil {
		return nil, err
	}
	if _, err := fsutil.CopyFile(fs, settings.OutputPath, dst); err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(dst); err == nil {
		dst = abs
	}

	meta.ProcessingTime = s.now().Sub(start)
	s.logger.Info("Recording saved", "path", dst, "size", meta.FileSize, "duration", meta.Duration)
	return &ProcessingResult{AudioFilePath: dst, Metadata: meta, Device: device}, nil
}
