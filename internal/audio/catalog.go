package audio

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/audiolibrelab/miccapture/internal/runner"
)

const (
	listTimeout  = 15 * time.Second
	probeTimeout = 10 * time.Second
)

// Catalog enumerates and probes capture devices through ffmpeg. Nothing is
// cached: every call queries the tool again.
type Catalog struct {
	exec       runner.Executor
	ffmpegPath string
	logger     *slog.Logger
	keywords   []string
}

// NewCatalog creates a catalog that runs ffmpegPath through exec. keywords
// orders devices for detection; nil selects DefaultPreferenceKeywords.
func NewCatalog(exec runner.Executor, ffmpegPath string, keywords []string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if len(keywords) == 0 {
		keywords = DefaultPreferenceKeywords
	}
	return &Catalog{
		exec:       exec,
		ffmpegPath: ffmpegPath,
		logger:     logger,
		keywords:   keywords,
	}
}

// ListDevices returns the current audio devices. Failures are logged and
// reported as an empty list.
func (c *Catalog) ListDevices(ctx context.Context) []Device {
	output, err := c.listRaw(ctx)
	if err != nil {
		c.logger.Error("Failed to list audio devices", "error", err)
		return []Device{}
	}

	devices := ParseDeviceList(output)
	c.logger.Debug("Listed audio devices", "count", len(devices))
	return devices
}

// listRaw returns the combined listing output. ffmpeg exits non-zero after
// listing devices, so the exit code is ignored.
func (c *Catalog) listRaw(ctx context.Context) (string, error) {
	res, err := c.exec.Run(ctx, c.ffmpegPath, ListDevicesArgs(), runner.Options{
		Timeout:       listTimeout,
		CaptureStderr: true,
	})
	if err != nil {
		return "", err
	}
	return res.Combined(), nil
}

// ValidateDevice reports whether index is present and can actually record.
// Unknown indices are rejected without running a probe.
func (c *Catalog) ValidateDevice(ctx context.Context, index string) bool {
	_, ok := c.lookupAndProbe(ctx, index)
	return ok
}

func (c *Catalog) lookupAndProbe(ctx context.Context, index string) (Device, bool) {
	device, found := findDevice(c.ListDevices(ctx), index)
	if !found {
		c.logger.Debug("Audio device not in catalog", "index", index)
		return Device{}, false
	}
	return device, c.probe(ctx, device)
}

func (c *Catalog) probe(ctx context.Context, device Device) bool {
	res, err := c.exec.Run(ctx, c.ffmpegPath, ProbeArgs(device.Index), runner.Options{
		Timeout:       probeTimeout,
		CaptureStderr: true,
	})
	if err != nil {
		c.logger.Debug("Audio device probe failed to run", "index", device.Index, "name", device.Name, "error", err)
		return false
	}
	if res.ExitCode != 0 {
		c.logger.Debug("Audio device probe failed", "index", device.Index, "name", device.Name, "exit_code", res.ExitCode)
		return false
	}
	c.logger.Debug("Audio device probe succeeded", "index", device.Index, "name", device.Name)
	return true
}

// GetDeviceInfo validates index and describes it. Capabilities are best
// effort: when they cannot be read, only index and name are filled in.
func (c *Catalog) GetDeviceInfo(ctx context.Context, index string) *DeviceConfig {
	device, ok := c.lookupAndProbe(ctx, index)
	if !ok {
		return nil
	}

	cfg := &DeviceConfig{AudioDevice: device.Index, AudioDeviceName: device.Name}

	res, err := c.exec.Run(ctx, c.ffmpegPath, InfoArgs(device.Index), runner.Options{
		Timeout:       probeTimeout,
		CaptureStderr: true,
	})
	if err != nil {
		c.logger.Warn("Could not query audio device details", "index", index, "error", err)
		return cfg
	}

	sampleRate, channels := ParseCapabilities(res.Combined())
	cfg.SampleRate = sampleRate
	cfg.Channels = channels
	cfg.ChannelLayout = LayoutForChannels(channels)
	return cfg
}
