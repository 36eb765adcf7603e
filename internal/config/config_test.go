package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeConfigs_ProfileOverridesAndFallback(t *testing.T) {
	base := &Config{
		FFmpeg:    FFmpegConfig{Path: "ffmpeg", SampleRate: 44100, Channels: 1},
		Recording: RecordingConfig{MaxDuration: 300},
		Devices:   DevicesConfig{PreferencesDirectory: "/prefs/default"},
		Output:    OutputConfig{Directory: "~/Audio/Default"},
		Player:    PlayerConfig{Command: "afplay"},
	}

	profile := &Config{
		FFmpeg:    FFmpegConfig{SampleRate: 48000},
		Recording: RecordingConfig{MaxDuration: 60, KeepTempFiles: true},
		Devices:   DevicesConfig{PreferenceKeywords: []string{"usb"}},
		Output:    OutputConfig{Directory: "~/Audio/Studio"},
	}

	result := mergeConfigs(base, profile)

	if result.FFmpeg.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", result.FFmpeg.SampleRate)
	}
	if result.FFmpeg.Channels != 1 {
		t.Errorf("Expected channels 1 from base, got %d", result.FFmpeg.Channels)
	}
	if result.FFmpeg.Path != "ffmpeg" {
		t.Errorf("Expected path 'ffmpeg' from base, got %s", result.FFmpeg.Path)
	}
	if result.Recording.MaxDuration != 60 || !result.Recording.KeepTempFiles {
		t.Errorf("Recording settings incorrect: got %+v", result.Recording)
	}
	if result.Devices.PreferencesDirectory != "/prefs/default" {
		t.Errorf("Expected inherited preferences directory, got %s", result.Devices.PreferencesDirectory)
	}
	if len(result.Devices.PreferenceKeywords) != 1 || result.Devices.PreferenceKeywords[0] != "usb" {
		t.Errorf("Expected keywords [usb], got %v", result.Devices.PreferenceKeywords)
	}
	if result.Output.Directory != "~/Audio/Studio" {
		t.Errorf("Expected directory '~/Audio/Studio', got %s", result.Output.Directory)
	}
	if result.Player.Command != "afplay" {
		t.Errorf("Expected player 'afplay' from base, got %s", result.Player.Command)
	}

	inh := result.Inheritance
	if inh == nil {
		t.Fatal("Expected inheritance information")
	}
	checks := map[string]string{
		"ffmpeg.sample_rate":          inh.FFmpeg.SampleRate,
		"ffmpeg.channels":             inh.FFmpeg.Channels,
		"recording.max_duration":      inh.Recording.MaxDuration,
		"devices.preferences_dir":     inh.Devices.PreferencesDirectory,
		"devices.preference_keywords": inh.Devices.PreferenceKeywords,
		"output.directory":            inh.Output.Directory,
		"player.command":              inh.Player.Command,
	}
	expected := map[string]string{
		"ffmpeg.sample_rate":          "profile-specific",
		"ffmpeg.channels":             "inherited",
		"recording.max_duration":      "profile-specific",
		"devices.preferences_dir":     "inherited",
		"devices.preference_keywords": "profile-specific",
		"output.directory":            "profile-specific",
		"player.command":              "inherited",
	}
	for key, want := range expected {
		if checks[key] != want {
			t.Errorf("Expected %s to be %s, got %s", key, want, checks[key])
		}
	}
}

func TestMergeConfigs_KeepTempFilesOnlyTurnsOn(t *testing.T) {
	base := &Config{Recording: RecordingConfig{MaxDuration: 300, KeepTempFiles: true}}
	profile := &Config{Recording: RecordingConfig{KeepTempFiles: false}}

	result := mergeConfigs(base, profile)
	if !result.Recording.KeepTempFiles {
		t.Error("Expected keep_temp_files inherited as true")
	}
	if result.Inheritance.Recording.KeepTempFiles != "inherited" {
		t.Errorf("Expected keep_temp_files inherited, got %s", result.Inheritance.Recording.KeepTempFiles)
	}
}

func TestMergeConfigs_NilProfile(t *testing.T) {
	base := Default()

	result := mergeConfigs(base, nil)
	if result.FFmpeg != base.FFmpeg || result.Recording != base.Recording {
		t.Errorf("Expected base settings, got %+v", result)
	}
	if result.Inheritance.FFmpeg.Path != "inherited" {
		t.Errorf("Expected everything inherited, got %s", result.Inheritance.FFmpeg.Path)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.FFmpeg.SampleRate != 44100 || cfg.FFmpeg.Channels != 1 {
		t.Errorf("Unexpected ffmpeg defaults: %+v", cfg.FFmpeg)
	}
	if cfg.Recording.MaxDuration != 300 {
		t.Errorf("Expected max duration 300, got %d", cfg.Recording.MaxDuration)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config must be valid: %v", err)
	}
}

func TestDefaultPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := DefaultConfigFile(), filepath.Join(home, ".config", "miccapture.yaml"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if got, want := DefaultPreferencesDir(), filepath.Join(home, ".config", "miccapture"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestResolveFFmpegPath(t *testing.T) {
	tests := []struct {
		name       string
		primary    string
		legacy     string
		configured string
		want       string
	}{
		{"configured", "", "", "/opt/ffmpeg", "/opt/ffmpeg"},
		{"fallback", "", "", "", "ffmpeg"},
		{"legacy env", "", "/usr/local/bin/ffmpeg", "/opt/ffmpeg", "/usr/local/bin/ffmpeg"},
		{"primary env wins", "/custom/ffmpeg", "/usr/local/bin/ffmpeg", "/opt/ffmpeg", "/custom/ffmpeg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvFFmpegPath, tc.primary)
			t.Setenv(EnvFFmpegPathLegacy, tc.legacy)

			if got := ResolveFFmpegPath(tc.configured); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFFmpegPath_ReadsEnvironmentAtUse(t *testing.T) {
	t.Setenv(EnvFFmpegPath, "")
	t.Setenv(EnvFFmpegPathLegacy, "")
	cfg := Default()

	if cfg.FFmpegPath() != "ffmpeg" {
		t.Errorf("Expected ffmpeg, got %s", cfg.FFmpegPath())
	}
	os.Setenv(EnvFFmpegPath, "/late/ffmpeg")
	if cfg.FFmpegPath() != "/late/ffmpeg" {
		t.Errorf("Expected override set after loading to apply, got %s", cfg.FFmpegPath())
	}
}
