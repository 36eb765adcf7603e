package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/audio"
	"github.com/audiolibrelab/miccapture/internal/media"
	"github.com/audiolibrelab/miccapture/internal/prefs"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	tempRoot  = "/tmp/work"
	outputDir = "/home/user/Recordings"
	prefsDir  = "/home/user/.config/miccapture"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

type fakeCatalog struct {
	valid     map[string]bool
	detected  string
	validated []string
	detects   int
}

func (f *fakeCatalog) ValidateDevice(_ context.Context, index string) bool {
	f.validated = append(f.validated, index)
	return f.valid[index]
}

func (f *fakeCatalog) DetectBestDevice(context.Context) string {
	f.detects++
	return f.detected
}

// fakeRecorder writes a short WAV to the output path ffmpeg would have used.
type fakeRecorder struct {
	fs          afero.Fs
	outcome     audio.Outcome
	err         error
	skipWrite   bool
	calls       int
	interactive bool
	ffmpegPath  string
	args        []string
}

func (f *fakeRecorder) Record(_ context.Context, ffmpegPath string, args []string, _ time.Duration) (audio.Outcome, error) {
	f.interactive = true
	return f.run(ffmpegPath, args)
}

func (f *fakeRecorder) RecordNonInteractive(_ context.Context, ffmpegPath string, args []string, _ time.Duration) (audio.Outcome, error) {
	return f.run(ffmpegPath, args)
}

func (f *fakeRecorder) run(ffmpegPath string, args []string) (audio.Outcome, error) {
	f.calls++
	f.ffmpegPath = ffmpegPath
	f.args = args
	if f.err != nil {
		return 0, f.err
	}
	if !f.skipWrite && f.outcome == audio.OutcomeStopped {
		if err := writeWAV(f.fs, args[len(args)-1]); err != nil {
			return 0, err
		}
	}
	return f.outcome, nil
}

func writeWAV(fs afero.Fs, path string) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, 44100, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Data:           make([]int, 4410),
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 44100},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Close()
}

// removeFailFs refuses to delete anything.
type removeFailFs struct {
	afero.Fs
}

func (removeFailFs) RemoveAll(string) error {
	return errors.New("operation not permitted")
}

type fixture struct {
	fs       afero.Fs
	catalog  *fakeCatalog
	recorder *fakeRecorder
	logs     *bytes.Buffer
	deps     Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	f := &fixture{
		fs:       fs,
		catalog:  &fakeCatalog{valid: map[string]bool{"0": true, "1": true}, detected: "1"},
		recorder: &fakeRecorder{fs: fs, outcome: audio.OutcomeStopped},
		logs:     logs,
	}
	f.deps = Deps{
		FS:         fs,
		Catalog:    f.catalog,
		Recorder:   f.recorder,
		Validator:  media.NewValidator(fs, nil, logger),
		FFmpegPath: func() string { return "/opt/homebrew/bin/ffmpeg" },
		TempDir:    tempRoot,
		Logger:     logger,
		Now:        func() time.Time { return fixedNow },
	}
	return f
}

func (f *fixture) service() *Service {
	return New(f.deps)
}

func (f *fixture) workspaces(t *testing.T) []string {
	t.Helper()
	entries, err := afero.ReadDir(f.fs, tempRoot)
	if err != nil && !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessAudio_DryRun(t *testing.T) {
	f := newFixture(t)

	result, err := f.service().ProcessAudio(context.Background(), Options{DryRun: true, AudioDevice: "0", OutputDir: outputDir})
	require.NoError(t, err)
	require.Equal(t, &ProcessingResult{}, result)

	require.Zero(t, f.recorder.calls)
	require.Empty(t, f.catalog.validated)
	require.Zero(t, f.catalog.detects)
	exists, err := afero.DirExists(f.fs, tempRoot)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestProcessAudio_InputFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, writeWAV(f.fs, "/data/interview.wav"))

	result, err := f.service().ProcessAudio(context.Background(), Options{InputFile: "/data/interview.wav"})
	require.NoError(t, err)
	require.Equal(t, "/data/interview.wav", result.AudioFilePath)
	require.False(t, result.Cancelled)
	require.Equal(t, "wav", result.Metadata.Format)
	require.Equal(t, 44100, result.Metadata.SampleRate)
	require.Zero(t, f.recorder.calls)

	_, err = f.service().ProcessAudio(context.Background(), Options{InputFile: "/data/missing.wav"})
	require.True(t, apperror.HasCode(err, apperror.CodeFileNotFound))
}

func TestProcessAudio_ExplicitDevice(t *testing.T) {
	f := newFixture(t)

	result, err := f.service().ProcessAudio(context.Background(), Options{
		AudioDevice:      "0",
		OutputDir:        outputDir,
		MaxRecordingTime: 30 * time.Second,
		Interactive:      true,
	})
	require.NoError(t, err)

	require.Equal(t, filepath.Join(outputDir, "recording-20240309-140507.wav"), result.AudioFilePath)
	require.Equal(t, "0", result.Device.AudioDevice)
	require.Zero(t, f.catalog.detects)
	require.True(t, f.recorder.interactive)
	require.Equal(t, "/opt/homebrew/bin/ffmpeg", f.recorder.ffmpegPath)
	require.Contains(t, strings.Join(f.recorder.args, " "), "-i :0 -t 30 -c:a pcm_s16le -ar 44100 -ac 1 -y "+tempRoot+"/miccapture-20240309-140507-")

	data, err := afero.ReadFile(f.fs, result.AudioFilePath)
	require.NoError(t, err)
	require.Equal(t, result.Metadata.FileSize, int64(len(data)))
	require.Empty(t, f.workspaces(t), "temp workspace is removed")
}

func TestProcessAudio_InvalidDevice(t *testing.T) {
	f := newFixture(t)

	_, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "9", OutputDir: outputDir})
	require.True(t, apperror.HasCode(err, apperror.CodeInvalidDevice))
	require.True(t, apperror.IsKind(err, apperror.KindConfiguration))
	require.Zero(t, f.recorder.calls)
	require.Empty(t, f.workspaces(t))
}

func TestProcessAudio_SavedPreferences(t *testing.T) {
	f := newFixture(t)
	store := prefs.New(f.fs, prefsDir, nil)
	require.NoError(t, store.Save(audio.DeviceConfig{
		AudioDevice: "1", AudioDeviceName: "AirPods Pro", SampleRate: 48000, Channels: 2, ChannelLayout: audio.LayoutStereo,
	}))
	f.deps.Prefs = store

	result, err := f.service().ProcessAudio(context.Background(), Options{OutputDir: outputDir})
	require.NoError(t, err)
	require.Equal(t, "AirPods Pro", result.Device.AudioDeviceName)
	require.Zero(t, f.catalog.detects)
	require.False(t, f.recorder.interactive)
	require.Contains(t, strings.Join(f.recorder.args, " "), "-i :1 -t 300 -c:a pcm_s16le -ar 48000 -ac 2")
}

func TestProcessAudio_MissingPreferences(t *testing.T) {
	f := newFixture(t)
	f.deps.Prefs = prefs.New(f.fs, prefsDir, nil)

	_, err := f.service().ProcessAudio(context.Background(), Options{OutputDir: outputDir})
	require.True(t, apperror.HasCode(err, apperror.CodeMissingDeviceConfig))
	require.Contains(t, err.Error(), prefsDir)
	require.Zero(t, f.recorder.calls)
}

func TestProcessAudio_AutoDetect(t *testing.T) {
	f := newFixture(t)

	result, err := f.service().ProcessAudio(context.Background(), Options{OutputDir: outputDir})
	require.NoError(t, err)
	require.Equal(t, 1, f.catalog.detects)
	require.Equal(t, "1", result.Device.AudioDevice)
}

func TestProcessAudio_UniqueOutputName(t *testing.T) {
	f := newFixture(t)
	existing := filepath.Join(outputDir, "recording-20240309-140507.wav")
	require.NoError(t, afero.WriteFile(f.fs, existing, []byte("earlier take"), 0o644))

	result, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outputDir, "recording-20240309-140507-1.wav"), result.AudioFilePath)

	data, err := afero.ReadFile(f.fs, existing)
	require.NoError(t, err)
	require.Equal(t, "earlier take", string(data), "existing files are never overwritten")
}

func TestProcessAudio_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.recorder.outcome = audio.OutcomeCancelled

	result, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir, Interactive: true})
	require.NoError(t, err)
	require.True(t, result.Cancelled)
	require.Empty(t, result.AudioFilePath)
	require.Nil(t, result.Metadata)
	require.Empty(t, f.workspaces(t))

	exists, err := afero.DirExists(f.fs, outputDir)
	require.NoError(t, err)
	require.False(t, exists, "nothing is copied for a cancelled recording")
}

func TestProcessAudio_RecordingErrorPropagatesAfterCleanup(t *testing.T) {
	f := newFixture(t)
	f.recorder.err = apperror.NonZeroExit(1, "Audio device error")

	_, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir})
	require.True(t, apperror.HasCode(err, apperror.CodeNonZeroExit))
	require.Contains(t, err.Error(), "Audio device error")
	require.Empty(t, f.workspaces(t))
}

func TestProcessAudio_MissingRecordingFails(t *testing.T) {
	f := newFixture(t)
	f.recorder.skipWrite = true

	_, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir})
	require.True(t, apperror.HasCode(err, apperror.CodeFileNotFound))
	require.Empty(t, f.workspaces(t))
}

func TestProcessAudio_KeepTempFiles(t *testing.T) {
	f := newFixture(t)

	result, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir, KeepTempFiles: true})
	require.NoError(t, err)

	require.Len(t, f.workspaces(t), 1)
	require.Equal(t, filepath.Join(tempRoot, f.workspaces(t)[0]), result.TempDir)
	exists, err := afero.Exists(f.fs, filepath.Join(result.TempDir, "recording-20240309-140507.wav"))
	require.NoError(t, err)
	require.True(t, exists)
}

func TestProcessAudio_CleanupFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.deps.FS = removeFailFs{Fs: f.fs}

	result, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", OutputDir: outputDir})
	require.NoError(t, err)
	require.NotEmpty(t, result.AudioFilePath)
	require.Contains(t, f.logs.String(), "Failed to clean up temporary files")
}

func TestProcessAudio_NegativeMaxRecordingTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.service().ProcessAudio(context.Background(), Options{AudioDevice: "0", MaxRecordingTime: -time.Second})
	require.True(t, apperror.HasCode(err, apperror.CodeInvalidConfig))
	require.Zero(t, f.recorder.calls)
}
