package audio

import (
	"context"
	"sort"
	"strings"

	"github.com/audiolibrelab/miccapture/internal/apperror"
)

// DefaultDeviceIndex is used when neither probing nor name matching finds a device.
const DefaultDeviceIndex = "0"

// DefaultPreferenceKeywords ranks wireless headsets over built-in laptop
// microphones over anything else.
var DefaultPreferenceKeywords = []string{
	"airpods",
	"headset",
	"headphones",
	"bluetooth",
	"wireless",
	"macbook",
	"built-in",
	"internal",
	"microphone",
}

// RankDevices returns devices ordered by the first keyword each name contains.
// Devices matching nothing go last; ties keep their listing order.
func RankDevices(devices []Device, keywords []string) []Device {
	ranked := make([]Device, len(devices))
	copy(ranked, devices)

	sort.SliceStable(ranked, func(i, j int) bool {
		return preferenceRank(ranked[i].Name, keywords) < preferenceRank(ranked[j].Name, keywords)
	})
	return ranked
}

func preferenceRank(name string, keywords []string) int {
	lower := strings.ToLower(name)
	for i, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return i
		}
	}
	return len(keywords)
}

// MatchPreferred returns the device matching the highest-priority keyword.
func MatchPreferred(devices []Device, keywords []string) (Device, bool) {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		for _, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), kw) {
				return d, true
			}
		}
	}
	return Device{}, false
}

// FindWorkingDevice probes devices in preference order and returns the first
// that records. It returns a device error when the catalog is empty and nil
// when every probe fails.
func (c *Catalog) FindWorkingDevice(ctx context.Context) (*Device, error) {
	devices := c.ListDevices(ctx)
	if len(devices) == 0 {
		return nil, apperror.NoDevicesAvailable()
	}

	for _, d := range RankDevices(devices, c.keywords) {
		if c.probe(ctx, d) {
			c.logger.Info("Found working audio device", "index", d.Index, "name", d.Name)
			found := d
			return &found, nil
		}
	}
	return nil, nil
}

// DetectBestDevice always returns a device index. It tries, in order: probing
// ranked devices, matching names in a fresh listing without probing, and
// finally DefaultDeviceIndex.
func (c *Catalog) DetectBestDevice(ctx context.Context) string {
	device, err := c.FindWorkingDevice(ctx)
	switch {
	case err != nil:
		c.logger.Warn("Audio device detection failed", "error", err)
	case device != nil:
		return device.Index
	default:
		c.logger.Warn("No audio device passed the probe")
	}

	output, err := c.listRaw(ctx)
	if err != nil {
		c.logger.Warn("Fallback device listing failed, using default device", "index", DefaultDeviceIndex, "error", err)
		return DefaultDeviceIndex
	}
	if d, ok := MatchPreferred(ParseDeviceList(output), c.keywords); ok {
		c.logger.Info("Selected audio device by name", "index", d.Index, "name", d.Name)
		return d.Index
	}

	c.logger.Info("No preferred audio device found, using default device", "index", DefaultDeviceIndex)
	return DefaultDeviceIndex
}
