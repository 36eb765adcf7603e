// Package apperror defines the single tagged error type used across miccapture.
package apperror

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the stable, machine-readable category of an Error.
type Kind string

const (
	KindDevice        Kind = "device"
	KindRecording     Kind = "recording"
	KindConfiguration Kind = "configuration"
	KindProcessing    Kind = "processing"
)

// Code narrows a Kind down to the specific failure.
type Code string

const (
	CodeDeviceNotFound      Code = "device_not_found"
	CodeNoDevices           Code = "no_devices"
	CodeDeviceNotAccessible Code = "device_not_accessible"

	CodeSpawnFailed  Code = "spawn_failed"
	CodeNonZeroExit  Code = "non_zero_exit"
	CodeTimeout      Code = "timeout"
	CodeProcessError Code = "process_error"

	CodeInvalidDevice       Code = "invalid_device"
	CodeMissingDeviceConfig Code = "missing_device_config"
	CodeInvalidConfig       Code = "invalid_config"

	CodeFileNotFound      Code = "file_not_found"
	CodeEmptyFile         Code = "empty_file"
	CodeUnsupportedFormat Code = "unsupported_format"
	CodeInvalidFile       Code = "invalid_file"
)

// Error carries a kind, a code, a human message and optional details.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Message
	}
	return e.Message + ": " + errors.Cause(e.cause).Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches another *Error by kind and code, so sentinel-style comparisons work:
//
//	errors.Is(err, &apperror.Error{Kind: apperror.KindDevice, Code: apperror.CodeNoDevices})
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Format prints the cause's stack trace for %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s/%s] %s", e.Kind, e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, " %s", e.detailString())
			}
			if e.cause != nil {
				fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

func (e *Error) detailString() string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// New builds an Error without a cause.
func New(kind Kind, code Code, message string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Details: details}
}

// Wrap builds an Error around cause, recording a stack trace at the call site.
func Wrap(cause error, kind Kind, code Code, message string, details map[string]any) *Error {
	e := New(kind, code, message, details)
	if cause != nil {
		e.cause = errors.WithStack(cause)
	}
	return e
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

// HasCode reports whether err carries an *Error with the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
