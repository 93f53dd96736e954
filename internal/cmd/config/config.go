// Package config provides CLI commands for managing labkeeper configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/labkeeper/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify labkeeper configuration",
	Long: `View or modify labkeeper configuration.

Without arguments, shows the effective configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  labkeeper config set server.base_port 9000
  labkeeper config set server.readiness_probe true
  labkeeper config set interpreter.path /opt/conda/bin/python

Run 'labkeeper config keys' to list every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys",
	RunE:  runConfigKeys,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/labkeeper/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR environment variable, or falls back to common editors (vim, nano, vi).
If no config file exists, creates one with default values first.`,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, resets all configuration to defaults.
With a key argument, resets only that specific key.

Examples:
  labkeeper config reset                   # Reset all to defaults
  labkeeper config reset server.base_port  # Reset only server.base_port`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
// This is the main entry point for integrating the config subpackage with
// the root command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyType describes how a value given on the command line is parsed.
type keyType int

const (
	typeString keyType = iota
	typeBool
	typeInt
	typePort
	typeKind
	typeLevel
)

// validKeys maps every settable key to its value type.
var validKeys = map[string]keyType{
	"server.module":               typeString,
	"server.kind":                 typeKind,
	"server.base_port":            typePort,
	"server.host":                 typeString,
	"server.warmup_ms":            typeInt,
	"server.readiness_probe":      typeBool,
	"server.readiness_timeout_ms": typeInt,
	"server.stop_grace_ms":        typeInt,
	"interpreter.path":            typeString,
	"session.data_dir":            typeString,
	"session.watch_store":         typeBool,
	"wizard.open_browser":         typeBool,
	"wizard.show_register":        typeBool,
	"logging.enabled":             typeBool,
	"logging.level":               typeLevel,
	"logging.max_size_mb":         typeInt,
	"logging.max_backups":         typeInt,
	"logging.compress":            typeBool,
	"api.listen":                  typeString,
	"api.metrics":                 typeBool,
}

func sortedKeys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseValue converts value to the type registered for key.
func parseValue(key, value string) (any, error) {
	kt, ok := validKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'labkeeper config keys' to see valid keys", key)
	}

	switch kt {
	case typeBool:
		if value != "true" && value != "false" {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return value == "true", nil
	case typeInt, typePort:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		if kt == typePort && (n < 1 || n > 65535) {
			return nil, fmt.Errorf("invalid value for %s: must be between 1 and 65535", key)
		}
		return n, nil
	case typeKind:
		if !slices.Contains(appconfig.ValidServerKinds(), value) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidServerKinds(), ", "))
		}
		return value, nil
	case typeLevel:
		level := strings.ToLower(value)
		if !slices.Contains(appconfig.ValidLogLevels(), level) {
			return nil, fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(appconfig.ValidLogLevels(), ", "))
		}
		return level, nil
	default:
		return value, nil
	}
}

// defaultValues returns the default for every settable key.
func defaultValues() map[string]any {
	d := appconfig.Default()
	return map[string]any{
		"server.module":               d.Server.Module,
		"server.kind":                 d.Server.Kind,
		"server.base_port":            d.Server.BasePort,
		"server.host":                 d.Server.Host,
		"server.warmup_ms":            d.Server.WarmupMs,
		"server.readiness_probe":      d.Server.ReadinessProbe,
		"server.readiness_timeout_ms": d.Server.ReadinessTimeoutMs,
		"server.stop_grace_ms":        d.Server.StopGraceMs,
		"interpreter.path":            d.Interpreter.Path,
		"session.data_dir":            d.Session.DataDir,
		"session.watch_store":         d.Session.WatchStore,
		"wizard.open_browser":         d.Wizard.OpenBrowser,
		"wizard.show_register":        d.Wizard.ShowRegister,
		"logging.enabled":             d.Logging.Enabled,
		"logging.level":               d.Logging.Level,
		"logging.max_size_mb":         d.Logging.MaxSizeMB,
		"logging.max_backups":         d.Logging.MaxBackups,
		"logging.compress":            d.Logging.Compress,
		"api.listen":                  d.API.Listen,
		"api.metrics":                 d.API.Metrics,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	cfg := appconfig.Get()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n\n")
	}
	return writeConfig(out, cfg)
}

func writeConfig(w io.Writer, cfg *appconfig.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

func runConfigKeys(cmd *cobra.Command, args []string) error {
	defaults := defaultValues()
	for _, key := range sortedKeys() {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-28s (default: %v)\n", key, defaults[key])
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	viper.Set(key, typedValue)
	configFile, err := saveConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", configFile)
	return nil
}

// saveConfig writes the viper state to the user's config file.
func saveConfig() (string, error) {
	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	configFile := appconfig.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return configFile, nil
}

// defaultConfigContent is the commented file written by config init.
const defaultConfigContent = `# labkeeper configuration

# Jupyter server launch settings
server:
  # Module run with "python -m"
  module: jupyter
  # Default server kind: notebook or lab
  kind: lab
  # First port probed; later launches take the next free port
  base_port: 8888
  # Host used in session URLs
  host: localhost
  # Fixed delay after spawning before a launch is considered done
  warmup_ms: 2000
  # Poll <url>api after the warm-up until the server answers
  readiness_probe: false
  readiness_timeout_ms: 30000
  # Time between SIGTERM and SIGKILL when stopping a server
  stop_grace_ms: 3000

# Python interpreter (empty: python3 or python on PATH)
interpreter:
  path: ""

session:
  # Where sessions.json and server logs live
  # (empty: $XDG_DATA_HOME/labkeeper)
  data_dir: ""
  # Pick up sessions launched by other processes while serving
  watch_store: true

# Launch wizard defaults
wizard:
  open_browser: false
  # Show the "register with host" toggle
  show_register: false

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

# HTTP API started by "labkeeper serve"
api:
  listen: 127.0.0.1:8787
  metrics: true
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := appconfig.ConfigDir()
	configFile := appconfig.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'labkeeper config set' to modify values", configFile)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := appconfig.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", configFile)
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintln(out, "\nEnvironment variables: LABKEEPER_* (e.g., LABKEEPER_SERVER_BASE_PORT)")
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	// Check if config file exists, if not create it
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		for _, e := range []string{"vim", "nano", "vi"} {
			if _, err := execLookPath(e); err == nil {
				editor = e
				break
			}
		}
	}
	if editor == "" {
		return fmt.Errorf("no editor found. Set $EDITOR environment variable")
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}
	return nil
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	defaults := defaultValues()

	if len(args) == 0 {
		for key, value := range defaults {
			viper.Set(key, value)
		}
		fmt.Fprintln(out, "Reset all configuration to defaults.")
	} else {
		key := args[0]
		value, ok := defaults[key]
		if !ok {
			return fmt.Errorf("unknown configuration key: %s\nRun 'labkeeper config keys' to see valid keys", key)
		}
		viper.Set(key, value)
		fmt.Fprintf(out, "Reset %s to default: %v\n", key, value)
	}

	configFile, err := saveConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}
