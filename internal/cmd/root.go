// Package cmd wires the labkeeper command tree.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/Iron-Ham/labkeeper/internal/cmd/config"
	sessioncmd "github.com/Iron-Ham/labkeeper/internal/cmd/session"
	"github.com/Iron-Ham/labkeeper/internal/config"
	"github.com/Iron-Ham/labkeeper/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "labkeeper",
	Short: "Launch and keep track of local Jupyter servers",
	Long: `labkeeper launches Jupyter notebook and lab servers, remembers them across
restarts, and lets other clients look them up by session id.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, sessioncmd.ErrReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/labkeeper/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	sessioncmd.Register(rootCmd)
	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("LABKEEPER")
	// Replace dots with underscores for nested keys in env vars
	// e.g., LABKEEPER_SERVER_BASE_PORT for server.base_port
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
