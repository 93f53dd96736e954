// Package errors provides the error taxonomy for labkeeper. It defines the
// sentinel errors a launch or reconciliation can fail with, a coded
// LaunchError that carries display context, and classification helpers.
//
// # Error Types
//
// Sentinel errors name the failure class and are matched with [Is]:
//   - ErrEnvironmentNotFound: no runnable interpreter was resolved
//   - ErrInvalidToken: a specific token was requested but left blank
//   - ErrPortUnavailable: the port probe itself failed
//   - ErrProcessIDUnavailable: the spawned process never reported a PID
//   - ErrStaleSession: a persisted session no longer has a live process
//
// LaunchError wraps a sentinel with a Code, a message, an optional
// underlying cause and a suggestion shown to the user:
//
//	err := errors.NewLaunchError(errors.CodePortUnavailable, "probe failed", cause).
//		WithSuggestion("free a port above 8888 and retry")
//	if errors.Is(err, errors.ErrPortUnavailable) { ... }
//
// # Classification
//
// Launch failures are fatal to the attempt and never retried automatically.
// StaleSession errors are expected drift across restarts and are not user
// facing; the reconciler drops them silently.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Launch-related sentinel errors
var (
	// ErrEnvironmentNotFound indicates that no runnable interpreter was resolved.
	ErrEnvironmentNotFound = New("interpreter environment not found")
	// ErrInvalidToken indicates that a specific token was requested but is blank.
	ErrInvalidToken = New("token must not be blank")
	// ErrPortUnavailable indicates that probing for a free port failed.
	ErrPortUnavailable = New("no port available")
	// ErrProcessIDUnavailable indicates that a spawned process never reported a PID.
	ErrProcessIDUnavailable = New("process id unavailable")
	// ErrLaunchCanceled indicates that the launch was canceled before spawning.
	ErrLaunchCanceled = New("launch canceled")
)

// Session-related sentinel errors
var (
	// ErrStaleSession indicates that a persisted session has no live process.
	ErrStaleSession = New("session process is gone")
	// ErrSessionNotFound indicates that no live session has the requested id.
	ErrSessionNotFound = New("session not found")
	// ErrSessionCorrupted indicates that a persisted session entry could not be parsed.
	ErrSessionCorrupted = New("session data corrupted")
)

// -----------------------------------------------------------------------------
// Codes
// -----------------------------------------------------------------------------

// Code classifies a LaunchError.
type Code string

const (
	CodeEnvironmentNotFound  Code = "ENVIRONMENT_NOT_FOUND"
	CodeInvalidToken         Code = "INVALID_TOKEN"
	CodePortUnavailable      Code = "PORT_UNAVAILABLE"
	CodeProcessIDUnavailable Code = "PROCESS_ID_UNAVAILABLE"
	CodeSpawnFailed          Code = "SPAWN_FAILED"
	CodeCanceled             Code = "CANCELED"
	CodeStaleSession         Code = "STALE_SESSION"
)

// sentinelFor maps a code to the sentinel it should match with errors.Is.
func sentinelFor(code Code) error {
	switch code {
	case CodeEnvironmentNotFound:
		return ErrEnvironmentNotFound
	case CodeInvalidToken:
		return ErrInvalidToken
	case CodePortUnavailable:
		return ErrPortUnavailable
	case CodeProcessIDUnavailable:
		return ErrProcessIDUnavailable
	case CodeCanceled:
		return ErrLaunchCanceled
	case CodeStaleSession:
		return ErrStaleSession
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------
// LaunchError
// -----------------------------------------------------------------------------

// LaunchError is a coded error raised while launching or reconciling a server.
//
// Example:
//
//	err := errors.NewLaunchError(errors.CodeEnvironmentNotFound, "no python on PATH", nil).
//		WithLaunchID("4f1c...")
//	fmt.Println(err) // "launch error [ENVIRONMENT_NOT_FOUND, launch=4f1c...]: no python on PATH"
type LaunchError struct {
	Code       Code
	Message    string
	LaunchID   string
	SessionID  string
	Suggestion string

	cause      error
	severity   Severity
	userFacing bool
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(code Code, message string, cause error) *LaunchError {
	return &LaunchError{
		Code:       code,
		Message:    message,
		cause:      cause,
		severity:   SeverityError,
		userFacing: code != CodeStaleSession,
	}
}

// WithLaunchID adds the launch attempt id to the error context.
func (e *LaunchError) WithLaunchID(id string) *LaunchError {
	e.LaunchID = id
	return e
}

// WithSessionID adds a session id to the error context.
func (e *LaunchError) WithSessionID(id string) *LaunchError {
	e.SessionID = id
	return e
}

// WithSuggestion attaches a hint shown below the message.
func (e *LaunchError) WithSuggestion(s string) *LaunchError {
	e.Suggestion = s
	return e
}

// WithSeverity sets the error severity.
func (e *LaunchError) WithSeverity(s Severity) *LaunchError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *LaunchError) Error() string {
	parts := []string{string(e.Code)}
	if e.LaunchID != "" {
		parts = append(parts, fmt.Sprintf("launch=%s", e.LaunchID))
	}
	if e.SessionID != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.SessionID))
	}

	prefix := fmt.Sprintf("launch error [%s]", strings.Join(parts, ", "))
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *LaunchError) Unwrap() error {
	return e.cause
}

// Is matches the sentinel for this error's code, then the cause chain.
func (e *LaunchError) Is(target error) bool {
	if s := sentinelFor(e.Code); s != nil && target == s {
		return true
	}
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *LaunchError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *LaunchError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------

// EnvironmentNotFound reports that the interpreter resolver produced nothing runnable.
func EnvironmentNotFound(detail string, cause error) *LaunchError {
	return NewLaunchError(CodeEnvironmentNotFound, detail, cause).
		WithSuggestion("set interpreter.path in the config or put python3 on PATH")
}

// InvalidToken reports a blank specific token.
func InvalidToken() *LaunchError {
	return NewLaunchError(CodeInvalidToken, "a specific token was selected but none was entered", nil).
		WithSeverity(SeverityWarning)
}

// PortUnavailable reports a failed port probe starting at base.
func PortUnavailable(base int, cause error) *LaunchError {
	return NewLaunchError(CodePortUnavailable, fmt.Sprintf("probe for a free port from %d failed", base), cause)
}

// ProcessIDUnavailable reports a spawned process that never exposed a PID.
func ProcessIDUnavailable(cause error) *LaunchError {
	return NewLaunchError(CodeProcessIDUnavailable, "server process did not report a process id", cause)
}

// SpawnFailed reports that the executable could not be started at all.
func SpawnFailed(executable string, cause error) *LaunchError {
	return NewLaunchError(CodeSpawnFailed, fmt.Sprintf("failed to start %s", executable), cause).
		WithSuggestion("check that the interpreter has jupyter installed")
}

// Canceled reports a launch stopped at a cancellation checkpoint.
func Canceled(cause error) *LaunchError {
	return NewLaunchError(CodeCanceled, "launch canceled", cause).WithSeverity(SeverityInfo)
}

// StaleSession reports a persisted session whose process is no longer alive.
func StaleSession(sessionID string) *LaunchError {
	return NewLaunchError(CodeStaleSession, "no live process for persisted session", nil).
		WithSessionID(sessionID).
		WithSeverity(SeverityDebug)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// GetCode returns the code of the first LaunchError in the chain, or "".
func GetCode(err error) Code {
	var le *LaunchError
	if As(err, &le) {
		return le.Code
	}
	return ""
}

// GetSuggestion returns the suggestion of the first LaunchError in the chain.
func GetSuggestion(err error) string {
	var le *LaunchError
	if As(err, &le) {
		return le.Suggestion
	}
	return ""
}

// IsUserFacing returns true if the error should be shown to the user.
// Errors that are not LaunchErrors are treated as user facing.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var le *LaunchError
	if As(err, &le) {
		return le.IsUserFacing()
	}
	return true
}

// GetSeverity returns the severity of err, defaulting to SeverityError.
func GetSeverity(err error) Severity {
	var le *LaunchError
	if As(err, &le) {
		return le.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with a message, returning nil when err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message, returning nil when err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
