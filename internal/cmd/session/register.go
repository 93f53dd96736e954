// Package session provides the CLI commands that launch, list, stop and
// resolve notebook server sessions, and the serve command that exposes them
// to other clients.
package session

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/labkeeper/internal/app"
	"github.com/Iron-Ham/labkeeper/internal/config"
	"github.com/Iron-Ham/labkeeper/internal/errors"
)

// ErrReported marks a failure that has already been shown to the user.
var ErrReported = errors.New("already reported")

// Register adds all session-related commands to the given parent command.
// This is the main entry point for integrating the session subpackage with
// the root command.
func Register(parent *cobra.Command) {
	RegisterLaunchCmd(parent)
	RegisterListCmd(parent)
	RegisterStopCmd(parent)
	RegisterResolveCmd(parent)
	RegisterServeCmd(parent)
}

// openApp loads the configuration, wires the runtime and reattaches the
// persisted sessions that are still alive.
func openApp(errOut io.Writer) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a, err := app.New(cfg, app.Options{Out: errOut})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}

	if _, err := a.Restore(); err != nil {
		a.Logger.Warn("session store could not be read", "error", err.Error())
	}
	return a, nil
}
