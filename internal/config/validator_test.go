package config

import (
	"strings"
	"testing"
)

func hasField(errs []ValidationError, field string) bool {
	for _, err := range errs {
		if err.Field == field {
			return true
		}
	}
	return false
}

func TestValidationErrors_Error(t *testing.T) {
	single := ValidationErrors{{Field: "server.kind", Value: "x", Message: "bad"}}
	if got := single.Error(); got != "server.kind: bad (got: x)" {
		t.Errorf("Error() = %q", got)
	}

	multi := ValidationErrors{
		{Field: "a", Value: 1, Message: "m1"},
		{Field: "b", Value: 2, Message: "m2"},
	}
	if got := multi.Error(); !strings.HasPrefix(got, "2 validation errors:") {
		t.Errorf("Error() = %q", got)
	}

	if (ValidationErrors{}).Error() != "" {
		t.Error("empty ValidationErrors should render as empty string")
	}
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("default config should be valid, got %v", errs)
	}
}

func TestConfig_Validate_Server(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"empty module", func(c *Config) { c.Server.Module = " " }, "server.module"},
		{"unknown kind", func(c *Config) { c.Server.Kind = "voila" }, "server.kind"},
		{"port zero", func(c *Config) { c.Server.BasePort = 0 }, "server.base_port"},
		{"port too large", func(c *Config) { c.Server.BasePort = 70000 }, "server.base_port"},
		{"empty host", func(c *Config) { c.Server.Host = "" }, "server.host"},
		{"negative warmup", func(c *Config) { c.Server.WarmupMs = -1 }, "server.warmup_ms"},
		{"probe without timeout", func(c *Config) {
			c.Server.ReadinessProbe = true
			c.Server.ReadinessTimeoutMs = 0
		}, "server.readiness_timeout_ms"},
		{"negative grace", func(c *Config) { c.Server.StopGraceMs = -5 }, "server.stop_grace_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			if !hasField(cfg.Validate(), tt.field) {
				t.Errorf("expected validation error on %s", tt.field)
			}
		})
	}

	t.Run("zero timeout allowed when probe disabled", func(t *testing.T) {
		cfg := Default()
		cfg.Server.ReadinessTimeoutMs = 0
		if hasField(cfg.Validate(), "server.readiness_timeout_ms") {
			t.Error("timeout should only be checked when the probe is on")
		}
	})
}

func TestConfig_Validate_Paths(t *testing.T) {
	cfg := Default()
	cfg.Interpreter.Path = "/usr/bin/py\x00thon"
	cfg.Session.DataDir = strings.Repeat("a", 5000)

	errs := cfg.Validate()
	if !hasField(errs, "interpreter.path") {
		t.Error("expected null byte error on interpreter.path")
	}
	if !hasField(errs, "session.data_dir") {
		t.Error("expected length error on session.data_dir")
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", ""} {
			cfg := Default()
			cfg.Logging.Level = level
			if hasField(cfg.Validate(), "logging.level") {
				t.Errorf("level %q should be valid", level)
			}
		}
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "INFO"
		if !hasField(cfg.Validate(), "logging.level") {
			t.Error("expected error for uppercase log level")
		}
	})

	t.Run("size bounds", func(t *testing.T) {
		for _, size := range []int{0, -1, 1001} {
			cfg := Default()
			cfg.Logging.MaxSizeMB = size
			if !hasField(cfg.Validate(), "logging.max_size_mb") {
				t.Errorf("size %d should be rejected", size)
			}
		}
	})

	t.Run("negative backups", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.MaxBackups = -1
		if !hasField(cfg.Validate(), "logging.max_backups") {
			t.Error("expected error for negative backups")
		}
	})
}

func TestConfig_Validate_API(t *testing.T) {
	for _, listen := range []string{"", "localhost", "127.0.0.1:http", "127.0.0.1:99999"} {
		cfg := Default()
		cfg.API.Listen = listen
		if !hasField(cfg.Validate(), "api.listen") {
			t.Errorf("listen %q should be rejected", listen)
		}
	}

	cfg := Default()
	cfg.API.Listen = ":0"
	if hasField(cfg.Validate(), "api.listen") {
		t.Error(":0 should be accepted")
	}
}
