package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/fsutil"
	"github.com/spf13/viper"
)

// Environment variables consulted for the ffmpeg binary, in priority order.
const (
	EnvFFmpegPath       = "MICCAPTURE_FFMPEG_PATH"
	EnvFFmpegPathLegacy = "FFMPEG_PATH"
)

const defaultProfile = "default"

type GlobalsConfig struct {
	Output  GlobalOutputConfig  `mapstructure:"output" yaml:"output"`
	Devices GlobalDevicesConfig `mapstructure:"devices" yaml:"devices"`
}

type GlobalOutputConfig struct {
	RecordingsDirectory string `mapstructure:"recordings_directory" yaml:"recordings_directory"`
}

type GlobalDevicesConfig struct {
	PreferencesDirectory string `mapstructure:"preferences_directory" yaml:"preferences_directory"`
}

type RootConfig struct {
	ActiveConfig             string             `mapstructure:"active_config" yaml:"active_config"`
	Globals                  *GlobalsConfig     `mapstructure:"globals,omitempty" yaml:"globals,omitempty"`
	Configs                  map[string]*Config `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string           `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

type Config struct {
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg" yaml:"ffmpeg"`
	Recording RecordingConfig `mapstructure:"recording" yaml:"recording"`
	Devices   DevicesConfig   `mapstructure:"devices" yaml:"devices"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output"`
	Player    PlayerConfig    `mapstructure:"player" yaml:"player"`

	// Filled from the root of the file, not from a profile.
	SupportedAudioExtensions []string `mapstructure:"-" yaml:"supported_audio_extensions"`

	// Name of the profile this config was resolved from.
	Profile string `mapstructure:"-" yaml:"-"`

	// Internal field to track inheritance information for info command
	Inheritance *InheritanceInfo `mapstructure:"-" yaml:"-"`
}

// InheritanceInfo tells, per setting, whether a profile set it ("profile-specific")
// or took it from the default profile ("inherited").
type InheritanceInfo struct {
	FFmpeg struct {
		Path       string
		SampleRate string
		Channels   string
	}
	Recording struct {
		MaxDuration   string
		KeepTempFiles string
		TempDirectory string
	}
	Devices struct {
		PreferencesDirectory string
		PreferenceKeywords   string
	}
	Output struct {
		Directory string
	}
	Player struct {
		Command string
	}
}

type FFmpegConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
}

type RecordingConfig struct {
	MaxDuration   int    `mapstructure:"max_duration" yaml:"max_duration"` // seconds
	KeepTempFiles bool   `mapstructure:"keep_temp_files" yaml:"keep_temp_files"`
	TempDirectory string `mapstructure:"temp_directory" yaml:"temp_directory"` // empty: system temp dir
}

type DevicesConfig struct {
	PreferencesDirectory string   `mapstructure:"preferences_directory" yaml:"preferences_directory"`
	PreferenceKeywords   []string `mapstructure:"preference_keywords" yaml:"preference_keywords"`
}

type OutputConfig struct {
	Directory string `mapstructure:"directory" yaml:"directory"`
}

type PlayerConfig struct {
	Command string `mapstructure:"command" yaml:"command"` // empty: first available player
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		FFmpeg: FFmpegConfig{
			Path:       "ffmpeg",
			SampleRate: 44100,
			Channels:   1,
		},
		Recording: RecordingConfig{
			MaxDuration: 300,
		},
		Devices: DevicesConfig{
			PreferencesDirectory: DefaultPreferencesDir(),
		},
		Output: OutputConfig{
			Directory: ".",
		},
		SupportedAudioExtensions: []string{"wav", "mp3", "m4a", "flac"},
		Profile:                  defaultProfile,
	}
}

// DefaultConfigFile returns $HOME/.config/miccapture.yaml.
func DefaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "miccapture.yaml"
	}
	return filepath.Join(home, ".config", "miccapture.yaml")
}

// DefaultPreferencesDir returns $HOME/.config/miccapture.
func DefaultPreferencesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".miccapture"
	}
	return filepath.Join(home, ".config", "miccapture")
}

// Load reads configFile and resolves profile (or active_config when empty).
// A missing file yields the built-in defaults.
func Load(configFile, profile string) (*Config, error) {
	if configFile == "" {
		return Default(), nil
	}
	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return LoadWithProfile(configFile, profile)
}

// LoadWithProfile reads configFile, which must exist, and resolves profile.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return Resolve(rootConfig, profile)
}

// ReadRootConfig parses configFile without resolving any profile.
func ReadRootConfig(configFile string) (*RootConfig, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetEnvPrefix("MICCAPTURE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &rootConfig, nil
}

// Resolve selects a profile from rootConfig, layers it over the default
// profile and the built-in defaults, and validates the result.
func Resolve(rootConfig *RootConfig, profile string) (*Config, error) {
	configName := profile
	if configName == "" {
		configName = rootConfig.ActiveConfig
	}
	if configName == "" {
		configName = defaultProfile
	}

	selectedProfile, exists := rootConfig.Configs[configName]
	if !exists && configName != defaultProfile {
		return nil, fmt.Errorf("configuration profile '%s' not found", configName)
	}

	base := Default()
	if defaults := rootConfig.Configs[defaultProfile]; defaults != nil {
		base = mergeConfigs(base, defaults)
	}

	selected := base
	if configName != defaultProfile {
		selected = mergeConfigs(base, selectedProfile)
	}
	selected.Profile = configName

	// Globals take precedence over any profile.
	if g := rootConfig.Globals; g != nil {
		if g.Output.RecordingsDirectory != "" {
			selected.Output.Directory = g.Output.RecordingsDirectory
		}
		if g.Devices.PreferencesDirectory != "" {
			selected.Devices.PreferencesDirectory = g.Devices.PreferencesDirectory
		}
	}
	if len(rootConfig.SupportedAudioExtensions) > 0 {
		selected.SupportedAudioExtensions = rootConfig.SupportedAudioExtensions
	}

	selected.Output.Directory = fsutil.ExpandHome(selected.Output.Directory)
	selected.Devices.PreferencesDirectory = fsutil.ExpandHome(selected.Devices.PreferencesDirectory)
	selected.Recording.TempDirectory = fsutil.ExpandHome(selected.Recording.TempDirectory)

	if err := Validate(selected); err != nil {
		return nil, err
	}
	return selected, nil
}

// mergeConfigs overlays profile on base. Zero values in profile fall back to
// base; inheritance is tracked for the info command.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: &InheritanceInfo{}}
	if base != nil {
		result.FFmpeg = base.FFmpeg
		result.Recording = base.Recording
		result.Devices = base.Devices
		result.Output = base.Output
		result.Player = base.Player
		result.SupportedAudioExtensions = base.SupportedAudioExtensions
		result.Profile = base.Profile
	}

	inh := result.Inheritance
	inh.FFmpeg.Path = "inherited"
	inh.FFmpeg.SampleRate = "inherited"
	inh.FFmpeg.Channels = "inherited"
	inh.Recording.MaxDuration = "inherited"
	inh.Recording.KeepTempFiles = "inherited"
	inh.Recording.TempDirectory = "inherited"
	inh.Devices.PreferencesDirectory = "inherited"
	inh.Devices.PreferenceKeywords = "inherited"
	inh.Output.Directory = "inherited"
	inh.Player.Command = "inherited"

	if profile == nil {
		return result
	}

	if profile.FFmpeg.Path != "" {
		result.FFmpeg.Path = profile.FFmpeg.Path
		inh.FFmpeg.Path = "profile-specific"
	}
	if profile.FFmpeg.SampleRate != 0 {
		result.FFmpeg.SampleRate = profile.FFmpeg.SampleRate
		inh.FFmpeg.SampleRate = "profile-specific"
	}
	if profile.FFmpeg.Channels != 0 {
		result.FFmpeg.Channels = profile.FFmpeg.Channels
		inh.FFmpeg.Channels = "profile-specific"
	}

	if profile.Recording.MaxDuration != 0 {
		result.Recording.MaxDuration = profile.Recording.MaxDuration
		inh.Recording.MaxDuration = "profile-specific"
	}
	// A profile can only turn retention on.
	if profile.Recording.KeepTempFiles {
		result.Recording.KeepTempFiles = true
		inh.Recording.KeepTempFiles = "profile-specific"
	}
	if profile.Recording.TempDirectory != "" {
		result.Recording.TempDirectory = profile.Recording.TempDirectory
		inh.Recording.TempDirectory = "profile-specific"
	}

	if profile.Devices.PreferencesDirectory != "" {
		result.Devices.PreferencesDirectory = profile.Devices.PreferencesDirectory
		inh.Devices.PreferencesDirectory = "profile-specific"
	}
	if len(profile.Devices.PreferenceKeywords) > 0 {
		result.Devices.PreferenceKeywords = profile.Devices.PreferenceKeywords
		inh.Devices.PreferenceKeywords = "profile-specific"
	}

	if profile.Output.Directory != "" {
		result.Output.Directory = profile.Output.Directory
		inh.Output.Directory = "profile-specific"
	}
	if profile.Player.Command != "" {
		result.Player.Command = profile.Player.Command
		inh.Player.Command = "profile-specific"
	}

	return result
}

// Validate checks a resolved configuration.
func Validate(cfg *Config) error {
	if cfg.Recording.MaxDuration <= 0 {
		return apperror.InvalidConfig("recording.max_duration", cfg.Recording.MaxDuration, "must be > 0 seconds")
	}
	if cfg.FFmpeg.SampleRate <= 0 {
		return apperror.InvalidConfig("ffmpeg.sample_rate", cfg.FFmpeg.SampleRate, "must be > 0")
	}
	if cfg.FFmpeg.Channels != 1 && cfg.FFmpeg.Channels != 2 {
		return apperror.InvalidConfig("ffmpeg.channels", cfg.FFmpeg.Channels, "must be 1 or 2")
	}
	for i, kw := range cfg.Devices.PreferenceKeywords {
		if strings.TrimSpace(kw) == "" {
			return apperror.InvalidConfig(fmt.Sprintf("devices.preference_keywords[%d]", i), kw, "must not be empty")
		}
	}
	for i, ext := range cfg.SupportedAudioExtensions {
		if strings.TrimPrefix(strings.TrimSpace(ext), ".") == "" {
			return apperror.InvalidConfig(fmt.Sprintf("supported_audio_extensions[%d]", i), ext, "must not be empty")
		}
	}
	return nil
}

// FFmpegPath returns the ffmpeg binary to run. The environment is read on
// every call so overrides apply without reloading the config.
func (c *Config) FFmpegPath() string {
	return ResolveFFmpegPath(c.FFmpeg.Path)
}

// ResolveFFmpegPath applies the environment overrides to configured.
func ResolveFFmpegPath(configured string) string {
	for _, key := range []string{EnvFFmpegPath, EnvFFmpegPathLegacy} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	if configured != "" {
		return configured
	}
	return "ffmpeg"
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	rootConfig, err := ReadRootConfig(configFile)
	if err != nil {
		return err
	}
	if _, ok := rootConfig.Configs[newActiveConfig]; !ok && newActiveConfig != defaultProfile {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	// A fresh instance so the write only touches this file.
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}
	v.Set("active_config", newActiveConfig)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}
	return nil
}
