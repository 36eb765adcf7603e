package apperror

import "fmt"

func DeviceNotFound(index string) *Error {
	return New(KindDevice, CodeDeviceNotFound,
		fmt.Sprintf("audio device %s not found", index),
		map[string]any{"audioDevice": index})
}

func NoDevicesAvailable() *Error {
	return New(KindDevice, CodeNoDevices, "no audio input devices available", nil)
}

func DeviceNotAccessible(index string, cause error) *Error {
	return Wrap(cause, KindDevice, CodeDeviceNotAccessible,
		fmt.Sprintf("audio device %s is not accessible", index),
		map[string]any{"audioDevice": index})
}

// SpawnFailed reports that command could not be started at all.
func SpawnFailed(command string, cause error) *Error {
	return Wrap(cause, KindRecording, CodeSpawnFailed,
		fmt.Sprintf("failed to start %s", command),
		map[string]any{"command": command})
}

// NonZeroExit reports a recording process that exited unsuccessfully. The
// message embeds both the exit code and the captured stderr text.
func NonZeroExit(exitCode int, stderr string) *Error {
	msg := fmt.Sprintf("recording failed with exit code %d", exitCode)
	if stderr != "" {
		msg += ": " + stderr
	}
	return New(KindRecording, CodeNonZeroExit, msg,
		map[string]any{"exitCode": exitCode, "stderr": stderr})
}

// ProcessError reports a failure of a running process other than its exit status.
func ProcessError(command string, cause error) *Error {
	return Wrap(cause, KindRecording, CodeProcessError,
		fmt.Sprintf("%s failed", command),
		map[string]any{"command": command})
}

func RecordingTimeout(seconds int) *Error {
	return New(KindRecording, CodeTimeout,
		fmt.Sprintf("recording did not finish within %ds", seconds),
		map[string]any{"timeoutSeconds": seconds})
}

func InvalidDevice(index string) *Error {
	return New(KindConfiguration, CodeInvalidDevice,
		fmt.Sprintf("invalid audio device: %s", index),
		map[string]any{"field": "audioDevice", "value": index})
}

func MissingDeviceConfig(dir string) *Error {
	return New(KindConfiguration, CodeMissingDeviceConfig,
		fmt.Sprintf("no saved audio device configuration in %s", dir),
		map[string]any{"field": "preferencesDir", "value": dir})
}

func InvalidConfig(field string, value any, reason string) *Error {
	return New(KindConfiguration, CodeInvalidConfig,
		fmt.Sprintf("invalid %s: %s", field, reason),
		map[string]any{"field": field, "value": value})
}

func FileNotFound(path string) *Error {
	return New(KindProcessing, CodeFileNotFound,
		fmt.Sprintf("audio file not found: %s", path),
		map[string]any{"path": path})
}

func EmptyFile(path string) *Error {
	return New(KindProcessing, CodeEmptyFile,
		fmt.Sprintf("audio file is empty: %s", path),
		map[string]any{"path": path})
}

func UnsupportedFormat(path, format string, supported []string) *Error {
	return New(KindProcessing, CodeUnsupportedFormat,
		fmt.Sprintf("unsupported audio format %q (supported: %v)", format, supported),
		map[string]any{"path": path, "format": format})
}

func InvalidFile(path string, cause error) *Error {
	return Wrap(cause, KindProcessing, CodeInvalidFile,
		fmt.Sprintf("invalid audio file: %s", path),
		map[string]any{"path": path})
}
