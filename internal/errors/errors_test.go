package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLaunchError_IsSentinel(t *testing.T) {
	tests := []struct {
		name string
		err  *LaunchError
		want error
	}{
		{"environment", EnvironmentNotFound("no python", nil), ErrEnvironmentNotFound},
		{"token", InvalidToken(), ErrInvalidToken},
		{"port", PortUnavailable(8888, nil), ErrPortUnavailable},
		{"pid", ProcessIDUnavailable(nil), ErrProcessIDUnavailable},
		{"canceled", Canceled(nil), ErrLaunchCanceled},
		{"stale", StaleSession("42"), ErrStaleSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false, want true", tt.err, tt.want)
			}
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, tt.want) {
				t.Error("sentinel should match through fmt.Errorf wrapping")
			}
		})
	}
}

func TestLaunchError_CauseChain(t *testing.T) {
	cause := errors.New("bind: permission denied")
	err := PortUnavailable(8888, cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause to be matched")
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("unrelated sentinel should not match")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestLaunchError_Error(t *testing.T) {
	err := NewLaunchError(CodeSpawnFailed, "failed to start python", errors.New("exec format error")).
		WithLaunchID("abc").
		WithSessionID("1234")

	msg := err.Error()
	for _, want := range []string{"SPAWN_FAILED", "launch=abc", "session=1234", "failed to start python", "exec format error"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestClassification(t *testing.T) {
	if IsUserFacing(StaleSession("1")) {
		t.Error("stale session errors should not be user facing")
	}
	if !IsUserFacing(PortUnavailable(8888, nil)) {
		t.Error("port errors should be user facing")
	}
	if !IsUserFacing(errors.New("plain")) {
		t.Error("plain errors default to user facing")
	}
	if IsUserFacing(nil) {
		t.Error("nil is never user facing")
	}

	if got := GetSeverity(InvalidToken()); got != SeverityWarning {
		t.Errorf("GetSeverity(InvalidToken) = %v, want warning", got)
	}
	if got := GetSeverity(errors.New("x")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want error", got)
	}

	wrapped := Wrap(EnvironmentNotFound("none", nil), "resolve")
	if GetCode(wrapped) != CodeEnvironmentNotFound {
		t.Errorf("GetCode() = %q", GetCode(wrapped))
	}
	if GetSuggestion(wrapped) == "" {
		t.Error("expected suggestion to survive wrapping")
	}
	if GetCode(errors.New("x")) != "" {
		t.Error("GetCode on plain error should be empty")
	}
}

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "msg") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "msg %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
	if got := Wrapf(errors.New("base"), "step %d", 2).Error(); got != "step 2: base" {
		t.Errorf("Wrapf() = %q", got)
	}
}
