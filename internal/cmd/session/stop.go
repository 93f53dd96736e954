package session

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/labkeeper/internal/app"
	"github.com/Iron-Ham/labkeeper/internal/errors"
)

var stopCmd = &cobra.Command{
	Use:   "stop [session-id...]",
	Short: "Stop running sessions",
	Long: `Stop the servers behind the given session ids. Each server's process group
receives SIGTERM, then SIGKILL once server.stop_grace_ms has passed.`,
	RunE: runStop,
}

var stopAll bool

func init() {
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every running session")
}

// RegisterStopCmd registers the stop command with the given parent command.
func RegisterStopCmd(parent *cobra.Command) {
	parent.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	if !stopAll && len(args) == 0 {
		return fmt.Errorf("specify a session id or --all")
	}

	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	ids := args
	if stopAll {
		ids = a.Registry.IDs()
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No running sessions.")
		return nil
	}

	return stopSessions(a, ids, func(id string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Stopped session %s\n", id)
	})
}

// stopSessions removes each id from the registry, which terminates its
// server. It keeps going past failures and returns them joined.
func stopSessions(a *app.App, ids []string, stopped func(id string)) error {
	var errs []error
	for _, id := range ids {
		if err := a.Registry.Remove(id); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", id, err))
			continue
		}
		stopped(id)
	}
	return errors.Join(errs...)
}
