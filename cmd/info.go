package cmd

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved configuration and tool paths",
	Long:  `Display the resolved configuration with inheritance indicators, the ffmpeg binary that will be used and the saved device. Shows which values are inherited from default vs profile-specific.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ffmpegPath := cfg.FFmpegPath()
		resolved, err := exec.LookPath(ffmpegPath)
		if err != nil {
			resolved = "not found"
		}

		fmt.Printf("=== ENVIRONMENT ===\n")
		fmt.Printf("config_file: %s\n", cfgFile)
		fmt.Printf("profile: %s\n", cfg.Profile)
		fmt.Printf("ffmpeg: %s (%s)\n", ffmpegPath, resolved)

		store := newPrefsStore()
		if saved, _ := store.Load(); saved != nil {
			fmt.Printf("saved_device: [%s] %s\n", saved.AudioDevice, saved.AudioDeviceName)
		} else {
			fmt.Printf("saved_device: none (auto-detect)\n")
		}

		inh := cfg.Inheritance
		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")

		fmt.Printf("\n[FFmpeg]\n")
		fmt.Printf("path: %s %s\n", cfg.FFmpeg.Path, indicator(inh != nil, func() string { return inh.FFmpeg.Path }))
		fmt.Printf("sample_rate: %d %s\n", cfg.FFmpeg.SampleRate, indicator(inh != nil, func() string { return inh.FFmpeg.SampleRate }))
		fmt.Printf("channels: %d %s\n", cfg.FFmpeg.Channels, indicator(inh != nil, func() string { return inh.FFmpeg.Channels }))

		fmt.Printf("\n[Recording]\n")
		fmt.Printf("max_duration: %ds %s\n", cfg.Recording.MaxDuration, indicator(inh != nil, func() string { return inh.Recording.MaxDuration }))
		fmt.Printf("keep_temp_files: %t %s\n", cfg.Recording.KeepTempFiles, indicator(inh != nil, func() string { return inh.Recording.KeepTempFiles }))
		fmt.Printf("temp_directory: %s %s\n", orDefault(cfg.Recording.TempDirectory, "(system)"), indicator(inh != nil, func() string { return inh.Recording.TempDirectory }))

		fmt.Printf("\n[Devices]\n")
		fmt.Printf("preferences_directory: %s %s\n", cfg.Devices.PreferencesDirectory, indicator(inh != nil, func() string { return inh.Devices.PreferencesDirectory }))
		fmt.Printf("preference_keywords: %s %s\n", strings.Join(keywords(), ", "), indicator(inh != nil, func() string { return inh.Devices.PreferenceKeywords }))

		fmt.Printf("\n[Output]\n")
		fmt.Printf("directory: %s %s\n", cfg.Output.Directory, indicator(inh != nil, func() string { return inh.Output.Directory }))
		fmt.Printf("supported_audio_extensions: %s\n", strings.Join(cfg.SupportedAudioExtensions, ", "))

		fmt.Printf("\n[Player]\n")
		fmt.Printf("command: %s %s\n", orDefault(cfg.Player.Command, "(auto)"), indicator(inh != nil, func() string { return inh.Player.Command }))

		return nil
	},
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// indicator formats an inheritance status; configs built without profiles
// have no inheritance information.
func indicator(tracked bool, status func() string) string {
	if !tracked {
		return "[built-in]"
	}
	return getInheritanceIndicator(status())
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case "inherited":
		return "[inherited]"
	case "profile-specific":
		return "[profile-specific]"
	default:
		return "[unknown]"
	}
}
