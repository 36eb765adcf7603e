package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audiolibrelab/miccapture/internal/audio"
	"github.com/audiolibrelab/miccapture/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record audio from the microphone",
	Long: `Record audio from the selected (or best detected) microphone into a WAV file.

In interactive mode press ENTER to stop and keep the recording, or C to
cancel and discard it. The recording also stops at --max-time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")
		maxTime, _ := cmd.Flags().GetInt("max-time")
		device, _ := cmd.Flags().GetString("device")
		keepTemp, _ := cmd.Flags().GetBool("keep-temp")
		noInteractive, _ := cmd.Flags().GetBool("no-interactive")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		playAfter, _ := cmd.Flags().GetBool("play")

		if outputDir == "" {
			outputDir = cfg.Output.Directory
		}
		if !cmd.Flags().Changed("max-time") {
			maxTime = cfg.Recording.MaxDuration
		}
		if maxTime <= 0 {
			return fmt.Errorf("--max-time must be > 0, got %d", maxTime)
		}

		stdin := audio.NewStdinInput()
		interactive := !noInteractive && stdin.IsTerminal()
		if !noInteractive && !interactive {
			logger.Info("Standard input is not a terminal, recording non-interactively")
		}

		var input audio.KeyInput
		if interactive {
			input = stdin
		}
		svc := newService(input)

		// Ctrl+C and SIGTERM stop the recording gracefully and keep the file.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := svc.ProcessAudio(ctx, service.Options{
			DryRun:           dryRun,
			AudioDevice:      device,
			OutputDir:        outputDir,
			MaxRecordingTime: time.Duration(maxTime) * time.Second,
			KeepTempFiles:    keepTemp || cfg.Recording.KeepTempFiles,
			Interactive:      interactive,
		})
		if err != nil {
			return fmt.Errorf("recording failed: %w", err)
		}

		switch {
		case dryRun:
			fmt.Println("Dry run: nothing was recorded")
			return nil
		case result.Cancelled:
			fmt.Println("Recording cancelled")
			return nil
		}

		fmt.Printf("Saved: %s\n", result.AudioFilePath)
		if m := result.Metadata; m != nil {
			fmt.Printf("  size: %s, duration: %s\n", formatBytes(m.FileSize), m.Duration.Round(100*time.Millisecond))
		}
		if result.TempDir != "" {
			fmt.Printf("  temporary files kept in %s\n", result.TempDir)
		}

		if playAfter {
			return newPlayer().Play(cmd.Context(), result.AudioFilePath)
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().StringP("output", "o", "", "output directory (overrides config)")
	recordCmd.Flags().IntP("max-time", "t", 300, "maximum recording time in seconds (overrides config)")
	recordCmd.Flags().StringP("device", "d", "", "audio device index (default: saved device, then auto-detect)")
	recordCmd.Flags().Bool("keep-temp", false, "keep temporary recording files")
	recordCmd.Flags().Bool("no-interactive", false, "disable ENTER/C keyboard controls")
	recordCmd.Flags().Bool("dry-run", false, "show what would be recorded without recording")
	recordCmd.Flags().Bool("play", false, "play the recording when done")
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
