package session

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <session-id>",
	Short: "Print connection details for a session",
	Long: `Print the base URL, token, auth header and mapped directory of a running
session as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

// RegisterResolveCmd registers the resolve command with the given parent command.
func RegisterResolveCmd(parent *cobra.Command) {
	parent.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	conn, err := a.Provider.Resolve(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(conn)
}
