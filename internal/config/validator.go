package config

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "server.base_port")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateAPI()...)
	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError
	s := c.Server

	if strings.TrimSpace(s.Module) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.module",
			Value:   s.Module,
			Message: "must not be empty",
		})
	}

	if !slices.Contains(ValidServerKinds(), s.Kind) {
		errors = append(errors, ValidationError{
			Field:   "server.kind",
			Value:   s.Kind,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidServerKinds(), ", ")),
		})
	}

	if s.BasePort < 1 || s.BasePort > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.base_port",
			Value:   s.BasePort,
			Message: "must be between 1 and 65535",
		})
	}

	if strings.TrimSpace(s.Host) == "" {
		errors = append(errors, ValidationError{
			Field:   "server.host",
			Value:   s.Host,
			Message: "must not be empty",
		})
	}

	if s.WarmupMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.warmup_ms",
			Value:   s.WarmupMs,
			Message: "must be non-negative",
		})
	}

	if s.ReadinessProbe && s.ReadinessTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.readiness_timeout_ms",
			Value:   s.ReadinessTimeoutMs,
			Message: "must be positive when readiness_probe is enabled",
		})
	}

	if s.StopGraceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "server.stop_grace_ms",
			Value:   s.StopGraceMs,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths checks interpreter.path and session.data_dir
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	const maxPathLength = 4096
	for field, path := range map[string]string{
		"interpreter.path": c.Interpreter.Path,
		"session.data_dir": c.Session.DataDir,
	} {
		if path == "" {
			continue
		}
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: "path contains invalid null character",
			})
		}
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	// Map iteration order is random; keep output stable.
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	const maxLogSizeMB = 1000
	switch {
	case c.Logging.MaxSizeMB <= 0:
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	case c.Logging.MaxSizeMB > maxLogSizeMB:
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateAPI() []ValidationError {
	_, port, err := net.SplitHostPort(c.API.Listen)
	if err != nil {
		return []ValidationError{{
			Field:   "api.listen",
			Value:   c.API.Listen,
			Message: "must be host:port",
		}}
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return []ValidationError{{
			Field:   "api.listen",
			Value:   c.API.Listen,
			Message: "port must be between 0 and 65535",
		}}
	}
	return nil
}
