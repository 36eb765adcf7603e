package audio

import (
	"regexp"
	"strconv"
	"strings"
)

// AudioSectionHeader introduces the audio half of ffmpeg's avfoundation device listing.
const AudioSectionHeader = "AVFoundation audio devices:"

var (
	deviceLinePattern    = regexp.MustCompile(`\[(\d+)\]\s+(\S.*)$`)
	sectionHeaderPattern = regexp.MustCompile(`AVFoundation \w+ devices:`)
	sampleRatePattern    = regexp.MustCompile(`(\d+)\s*Hz`)
	channelsPattern      = regexp.MustCompile(`(\d+)\s*ch`)
)

// Device is one capture device as reported by ffmpeg. Index is the opaque
// selector ffmpeg expects; Name is free text and may repeat.
type Device struct {
	Index string `json:"index"`
	Name  string `json:"name"`
}

// ChannelLayout is the channel arrangement of a device configuration.
type ChannelLayout string

const (
	LayoutMono   ChannelLayout = "mono"
	LayoutStereo ChannelLayout = "stereo"
)

// DeviceConfig records a device selection. It can go stale when devices are
// unplugged; only a probe confirms it is still usable.
type DeviceConfig struct {
	AudioDevice     string        `json:"audioDevice" yaml:"audio_device"`
	AudioDeviceName string        `json:"audioDeviceName" yaml:"audio_device_name"`
	SampleRate      int           `json:"sampleRate,omitempty" yaml:"sample_rate,omitempty"`
	Channels        int           `json:"channels,omitempty" yaml:"channels,omitempty"`
	ChannelLayout   ChannelLayout `json:"channelLayout,omitempty" yaml:"channel_layout,omitempty"`
}

// ParseDeviceList extracts the audio devices from a device listing. Output
// without the audio section header yields no devices. Lines that do not carry
// a bracketed index are skipped.
func ParseDeviceList(output string) []Device {
	devices := []Device{}

	start := strings.Index(output, AudioSectionHeader)
	if start < 0 {
		return devices
	}
	section := output[start+len(AudioSectionHeader):]

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimRight(line, "\r")
		if sectionHeaderPattern.MatchString(line) {
			break
		}
		m := deviceLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		devices = append(devices, Device{Index: m[1], Name: strings.TrimSpace(m[2])})
	}

	return devices
}

// ParseCapabilities picks a sample rate ("<N> Hz") and channel count
// ("<N> ch...") out of ffmpeg's stream description. Zero means not found.
func ParseCapabilities(output string) (sampleRate, channels int) {
	if m := sampleRatePattern.FindStringSubmatch(output); m != nil {
		sampleRate, _ = strconv.Atoi(m[1])
	}
	if m := channelsPattern.FindStringSubmatch(output); m != nil {
		channels, _ = strconv.Atoi(m[1])
	}
	return sampleRate, channels
}

// LayoutForChannels maps a channel count to a layout: exactly two is stereo,
// anything else present is mono.
func LayoutForChannels(channels int) ChannelLayout {
	switch {
	case channels == 2:
		return LayoutStereo
	case channels > 0:
		return LayoutMono
	default:
		return ""
	}
}

func findDevice(devices []Device, index string) (Device, bool) {
	for _, d := range devices {
		if d.Index == index {
			return d, true
		}
	}
	return Device{}, false
}
