package cmd

import (
	"os"

	"github.com/audiolibrelab/miccapture/internal/audio"
	"github.com/audiolibrelab/miccapture/internal/media"
	"github.com/audiolibrelab/miccapture/internal/play"
	"github.com/audiolibrelab/miccapture/internal/prefs"
	"github.com/audiolibrelab/miccapture/internal/runner"
	"github.com/audiolibrelab/miccapture/internal/service"
	"github.com/spf13/afero"
)

var osFs = afero.NewOsFs()

func newRunner() *runner.Runner {
	return runner.New(processLogger())
}

func newCatalog() *audio.Catalog {
	return audio.NewCatalog(newRunner(), cfg.FFmpegPath(), cfg.Devices.PreferenceKeywords, logger)
}

func newPrefsStore() *prefs.Store {
	return prefs.New(osFs, cfg.Devices.PreferencesDirectory, logger)
}

func newValidator() *media.Validator {
	return media.NewValidator(osFs, cfg.SupportedAudioExtensions, logger)
}

func newPlayer() *play.Player {
	return play.New(newRunner(), osFs, cfg.Player.Command, logger)
}

// newService wires the recording pipeline. input may be nil for
// non-interactive use.
func newService(input audio.KeyInput) *service.Service {
	deps := service.Deps{
		FS:         osFs,
		Catalog:    newCatalog(),
		Recorder:   audio.NewController(newRunner(), input, logger).WithOutputLogger(processLogger()),
		Validator:  newValidator(),
		FFmpegPath: cfg.FFmpegPath,
		SampleRate: cfg.FFmpeg.SampleRate,
		Channels:   cfg.FFmpeg.Channels,
		TempDir:    cfg.Recording.TempDirectory,
		Logger:     logger,
	}

	// A saved selection is only consulted once one exists; until then the
	// best device is detected on every run.
	store := newPrefsStore()
	if _, err := os.Stat(store.Path()); err == nil {
		deps.Prefs = store
	}
	return service.New(deps)
}
