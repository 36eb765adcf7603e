package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/config"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
	logger       = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "miccapture",
	Short: "Record audio from a microphone with ffmpeg",
	Long: `miccapture records audio from a host microphone through ffmpeg.

It finds the best available input device (preferring headsets and
Bluetooth earbuds over built-in microphones), records to a WAV file
with interactive ENTER/C controls, validates the result and copies it
to your output directory.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		logger = setupLogging(verboseLevel)

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = config.DefaultConfigFile()
		}

		var err error
		cfg, err = config.Load(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.Debug("Configuration loaded", "file", cfgFile, "profile", cfg.Profile)
		return nil
	},
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorMessage(err))
		logger.Debug("Command failed", "error", fmt.Sprintf("%+v", err))
		os.Exit(1)
	}
}

// errorMessage prefers the tagged error's own message over any CLI wrapping.
func errorMessage(err error) string {
	if appErr, ok := apperror.As(err); ok {
		return appErr.Error()
	}
	return err.Error()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/miccapture.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=ffmpeg output")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) *slog.Logger {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(l)
	return l
}

// processLogger is handed to components that forward ffmpeg's output line by
// line. Those lines only show at verbose level 2.
func processLogger() *slog.Logger {
	if verboseLevel >= 2 {
		return logger
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
