// Package fsutil holds the filesystem helpers shared by the store, validator and
// recording service. Outcomes that callers branch on are returned as a Status
// rather than as errors to inspect.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Status is the outcome of a filesystem operation.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result pairs a Status with the underlying error for StatusFailed.
type Result struct {
	Status Status
	Err    error
}

func classify(err error) Result {
	switch {
	case err == nil:
		return Result{Status: StatusOK}
	case errors.Is(err, fs.ErrNotExist):
		return Result{Status: StatusNotFound, Err: err}
	default:
		return Result{Status: StatusFailed, Err: err}
	}
}

// ReadFile reads path, classifying a missing file as StatusNotFound.
func ReadFile(fsys afero.Fs, path string) ([]byte, Result) {
	data, err := afero.ReadFile(fsys, path)
	return data, classify(err)
}

// Stat returns file info, classifying a missing file as StatusNotFound.
func Stat(fsys afero.Fs, path string) (os.FileInfo, Result) {
	info, err := fsys.Stat(path)
	return info, classify(err)
}

// RemoveAll removes path and everything below it. A path that is already gone
// is reported as StatusNotFound.
func RemoveAll(fsys afero.Fs, path string) Result {
	if _, err := fsys.Stat(path); err != nil {
		return classify(err)
	}
	return classify(fsys.RemoveAll(path))
}

// CopyFile copies src to dst, creating dst's directory when needed.
func CopyFile(fsys afero.Fs, src, dst string) (int64, error) {
	in, err := fsys.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	if err := fsys.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", dst, err)
	}

	out, err := fsys.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", dst, err)
	}
	return n, nil
}

// UniquePath returns dir/name if it is free, otherwise the first free
// "<base>-N<ext>" with N counting up from 1.
func UniquePath(fsys afero.Fs, dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		exists, err := afero.Exists(fsys, candidate)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, i, ext))
	}
}

// Timestamp formats t for use in file and directory names.
func Timestamp(t time.Time) string {
	return t.Format("20060102-150405")
}

// CreateWorkspace creates a private, uniquely named directory under parent
// (os.TempDir when empty). The name combines prefix, a timestamp and a random
// suffix.
func CreateWorkspace(fsys afero.Fs, parent, prefix string, now time.Time) (string, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	dir := filepath.Join(parent, fmt.Sprintf("%s-%s-%s", prefix, Timestamp(now), suffix))

	if err := fsys.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return dir, nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
