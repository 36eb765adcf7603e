// Package media validates audio files and extracts basic metadata.
package media

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/audiolibrelab/miccapture/internal/apperror"
	"github.com/audiolibrelab/miccapture/internal/fsutil"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DefaultExtensions are accepted when no list is configured.
var DefaultExtensions = []string{"wav", "mp3", "m4a", "flac"}

// Metadata describes a validated audio file. Duration, SampleRate and
// Channels are only known for WAV files.
type Metadata struct {
	FileSize       int64         `json:"fileSize" yaml:"file_size"`
	Format         string        `json:"format" yaml:"format"`
	Duration       time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	SampleRate     int           `json:"sampleRate,omitempty" yaml:"sample_rate,omitempty"`
	Channels       int           `json:"channels,omitempty" yaml:"channels,omitempty"`
	ProcessingTime time.Duration `json:"processingTime" yaml:"processing_time"`
}

// Validator checks audio files on a filesystem.
type Validator struct {
	fs         afero.Fs
	extensions []string
	logger     *slog.Logger
	now        func() time.Time
}

// NewValidator creates a validator accepting the given extensions (without
// dots, case-insensitive). An empty list means DefaultExtensions.
func NewValidator(fs afero.Fs, extensions []string, logger *slog.Logger) *Validator {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	normalized := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		normalized = append(normalized, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{fs: fs, extensions: normalized, logger: logger, now: time.Now}
}

// Extensions returns the accepted extensions.
func (v *Validator) Extensions() []string {
	return v.extensions
}

// Validate checks that path exists, is non-empty and has a supported
// extension. WAV files must also carry a valid RIFF/WAVE header.
func (v *Validator) Validate(path string) (*Metadata, error) {
	start := v.now()

	info, res := fsutil.Stat(v.fs, path)
	switch res.Status {
	case fsutil.StatusNotFound:
		return nil, apperror.FileNotFound(path)
	case fsutil.StatusFailed:
		return nil, apperror.InvalidFile(path, res.Err)
	}
	if info.IsDir() {
		return nil, apperror.InvalidFile(path, fmt.Errorf("%s is a directory", path))
	}
	if info.Size() == 0 {
		return nil, apperror.EmptyFile(path)
	}

	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if !v.supported(format) {
		return nil, apperror.UnsupportedFormat(path, format, v.extensions)
	}

	meta := &Metadata{FileSize: info.Size(), Format: format}
	if format == "wav" {
		if err := v.inspectWAV(path, meta); err != nil {
			return nil, apperror.InvalidFile(path, err)
		}
	}
	meta.ProcessingTime = v.now().Sub(start)

	v.logger.Debug("Validated audio file", "path", path, "format", meta.Format,
		"size", meta.FileSize, "duration", meta.Duration)
	return meta, nil
}

func (v *Validator) supported(format string) bool {
	for _, ext := range v.extensions {
		if ext == format {
			return true
		}
	}
	return false
}

func (v *Validator) inspectWAV(path string, meta *Metadata) error {
	f, err := v.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %q", path)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return errors.Errorf("%q is not a valid wav file", path)
	}
	meta.SampleRate = int(decoder.SampleRate)
	meta.Channels = int(decoder.NumChans)

	if err := decoder.FwdToPCM(); err != nil {
		return errors.Wrapf(err, "failed to locate audio data in %q", path)
	}
	bytesPerSecond := int64(decoder.SampleRate) * int64(decoder.NumChans) * int64(decoder.BitDepth) / 8
	if bytesPerSecond > 0 {
		meta.Duration = time.Duration(float64(decoder.PCMLen()) / float64(bytesPerSecond) * float64(time.Second))
	}
	return nil
}
