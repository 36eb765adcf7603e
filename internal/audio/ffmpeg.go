package audio

import (
	"fmt"
	"strconv"
	"time"
)

const (
	inputFormat = "avfoundation"

	// DefaultSampleRate and DefaultChannels describe the recorded PCM stream.
	DefaultSampleRate = 44100
	DefaultChannels   = 1

	probeDuration = "0.1"
)

// RecordSettings selects the input device and output encoding for one recording.
type RecordSettings struct {
	DeviceIndex string
	MaxDuration time.Duration
	SampleRate  int
	Channels    int
	OutputPath  string
}

// ListDevicesArgs asks ffmpeg to print its capture devices.
func ListDevicesArgs() []string {
	return []string{"-hide_banner", "-f", inputFormat, "-list_devices", "true", "-i", ""}
}

// ProbeArgs records a fraction of a second from index into the null muxer.
func ProbeArgs(index string) []string {
	return []string{"-hide_banner", "-f", inputFormat, "-i", deviceInput(index), "-t", probeDuration, "-f", "null", "-"}
}

// InfoArgs opens index just long enough for ffmpeg to describe the stream.
func InfoArgs(index string) []string {
	return []string{"-hide_banner", "-f", inputFormat, "-i", deviceInput(index), "-frames:a", "1", "-f", "null", "-"}
}

// RecordArgs builds the argument list for a PCM recording.
func RecordArgs(s RecordSettings) []string {
	sampleRate := s.SampleRate
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	channels := s.Channels
	if channels <= 0 {
		channels = DefaultChannels
	}

	args := []string{"-hide_banner", "-f", inputFormat, "-i", deviceInput(s.DeviceIndex)}
	if s.MaxDuration > 0 {
		args = append(args, "-t", strconv.Itoa(int(s.MaxDuration.Round(time.Second)/time.Second)))
	}
	return append(args,
		"-c:a", "pcm_s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(channels),
		"-y",
		s.OutputPath,
	)
}

// deviceInput selects an audio-only avfoundation input.
func deviceInput(index string) string {
	return fmt.Sprintf(":%s", index)
}
