package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete labkeeper configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Interpreter InterpreterConfig `mapstructure:"interpreter" yaml:"interpreter"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	Wizard      WizardConfig      `mapstructure:"wizard" yaml:"wizard"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	API         APIConfig         `mapstructure:"api" yaml:"api"`
}

// ServerConfig controls how notebook servers are launched
type ServerConfig struct {
	// Module is the python module run with -m (default: "jupyter")
	Module string `mapstructure:"module" yaml:"module"`
	// Kind is the default server flavor: "notebook" or "lab"
	Kind string `mapstructure:"kind" yaml:"kind"`
	// BasePort is where the free-port probe starts (default: 8888)
	BasePort int `mapstructure:"base_port" yaml:"base_port"`
	// Host is used to build session base URLs (default: "localhost")
	Host string `mapstructure:"host" yaml:"host"`
	// WarmupMs is the fixed delay after spawn before a launch completes
	WarmupMs int `mapstructure:"warmup_ms" yaml:"warmup_ms"`
	// ReadinessProbe polls <baseUrl>api after the warm-up when true
	ReadinessProbe bool `mapstructure:"readiness_probe" yaml:"readiness_probe"`
	// ReadinessTimeoutMs bounds the readiness probe
	ReadinessTimeoutMs int `mapstructure:"readiness_timeout_ms" yaml:"readiness_timeout_ms"`
	// StopGraceMs is how long stop waits after SIGTERM before SIGKILL
	StopGraceMs int `mapstructure:"stop_grace_ms" yaml:"stop_grace_ms"`
}

// InterpreterConfig selects the python interpreter
type InterpreterConfig struct {
	// Path to the interpreter. Empty means look up python3, then python, on PATH.
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionConfig controls session persistence
type SessionConfig struct {
	// DataDir holds the session store and logs. Empty means $XDG_DATA_HOME/labkeeper.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// WatchStore makes `serve` re-reconcile when the store file changes
	WatchStore bool `mapstructure:"watch_store" yaml:"watch_store"`
}

// WizardConfig sets defaults for the interactive launch wizard
type WizardConfig struct {
	// OpenBrowser is the initial state of the OpenInBrowser toggle
	OpenBrowser bool `mapstructure:"open_browser" yaml:"open_browser"`
	// ShowRegister shows the RegisterWithHost toggle
	ShowRegister bool `mapstructure:"show_register" yaml:"show_register"`
}

// LoggingConfig controls the diagnostic log
type LoggingConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Level      string `mapstructure:"level" yaml:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// APIConfig controls the consumer HTTP surface started by `serve`
type APIConfig struct {
	// Listen is the host:port the API binds to
	Listen string `mapstructure:"listen" yaml:"listen"`
	// Metrics exposes /metrics when true
	Metrics bool `mapstructure:"metrics" yaml:"metrics"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Module:             "jupyter",
			Kind:               "lab",
			BasePort:           8888,
			Host:               "localhost",
			WarmupMs:           2000,
			ReadinessProbe:     false,
			ReadinessTimeoutMs: 30000,
			StopGraceMs:        3000,
		},
		Session: SessionConfig{
			WatchStore: true,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		API: APIConfig{
			Listen:  "127.0.0.1:8787",
			Metrics: true,
		},
	}
}

// Warmup returns the post-spawn warm-up delay
func (c *ServerConfig) Warmup() time.Duration {
	return time.Duration(c.WarmupMs) * time.Millisecond
}

// ReadinessTimeout returns the readiness probe bound
func (c *ServerConfig) ReadinessTimeout() time.Duration {
	return time.Duration(c.ReadinessTimeoutMs) * time.Millisecond
}

// StopGrace returns the SIGTERM to SIGKILL grace period
func (c *ServerConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMs) * time.Millisecond
}

// ResolveDataDir returns the configured data directory or the XDG default.
func (c *SessionConfig) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// StorePath returns the persisted session list inside dataDir.
func StorePath(dataDir string) string {
	return filepath.Join(dataDir, "sessions.json")
}

// ServerLogDir returns the directory that receives spawned server output.
func ServerLogDir(dataDir string) string {
	return filepath.Join(dataDir, "logs")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Server defaults
	viper.SetDefault("server.module", defaults.Server.Module)
	viper.SetDefault("server.kind", defaults.Server.Kind)
	viper.SetDefault("server.base_port", defaults.Server.BasePort)
	viper.SetDefault("server.host", defaults.Server.Host)
	viper.SetDefault("server.warmup_ms", defaults.Server.WarmupMs)
	viper.SetDefault("server.readiness_probe", defaults.Server.ReadinessProbe)
	viper.SetDefault("server.readiness_timeout_ms", defaults.Server.ReadinessTimeoutMs)
	viper.SetDefault("server.stop_grace_ms", defaults.Server.StopGraceMs)

	// Interpreter defaults
	viper.SetDefault("interpreter.path", defaults.Interpreter.Path)

	// Session defaults
	viper.SetDefault("session.data_dir", defaults.Session.DataDir)
	viper.SetDefault("session.watch_store", defaults.Session.WatchStore)

	// Wizard defaults
	viper.SetDefault("wizard.open_browser", defaults.Wizard.OpenBrowser)
	viper.SetDefault("wizard.show_register", defaults.Wizard.ShowRegister)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// API defaults
	viper.SetDefault("api.listen", defaults.API.Listen)
	viper.SetDefault("api.metrics", defaults.API.Metrics)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "labkeeper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".labkeeper"
	}
	return filepath.Join(home, ".config", "labkeeper")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultDataDir returns $XDG_DATA_HOME/labkeeper, or ~/.local/share/labkeeper.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "labkeeper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".labkeeper"
	}
	return filepath.Join(home, ".local", "share", "labkeeper")
}

// ValidServerKinds returns the accepted values of server.kind
func ValidServerKinds() []string {
	return []string{"notebook", "lab"}
}
