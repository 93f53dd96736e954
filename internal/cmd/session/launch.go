package session

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/labkeeper/internal/config"
	"github.com/Iron-Ham/labkeeper/internal/launch"
	"github.com/Iron-Ham/labkeeper/internal/launcher"
	"github.com/Iron-Ham/labkeeper/internal/tui/styles"
	"github.com/Iron-Ham/labkeeper/internal/wizard"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Launch a Jupyter server",
	Long: `Launch a Jupyter notebook or lab server on the first free port at or above
server.base_port.

By default an interactive wizard collects the launch options. Pass --no-wizard
to build the configuration from flags instead, e.g. in scripts.`,
	Args: cobra.NoArgs,
	RunE: runLaunch,
}

// launchFlags are the non-interactive launch options.
type launchFlags struct {
	noWizard    bool
	kind        string
	tokenMode   string
	token       string
	password    string
	noCORS      bool
	openBrowser bool
	dir         string
	mapDir      string
	noRegister  bool
}

var launchOpts launchFlags

func init() {
	f := launchCmd.Flags()
	f.BoolVar(&launchOpts.noWizard, "no-wizard", false, "Build the configuration from flags instead of the wizard")
	f.StringVar(&launchOpts.kind, "kind", "", "Server kind: notebook or lab (default server.kind)")
	f.StringVar(&launchOpts.tokenMode, "token-mode", "random", "Token mode: random, empty or specific")
	f.StringVar(&launchOpts.token, "token", "", "Token value for --token-mode specific")
	f.StringVar(&launchOpts.password, "password", "", "Require this password")
	f.BoolVar(&launchOpts.noCORS, "no-cors", false, "Do not allow cross-origin requests")
	f.BoolVar(&launchOpts.openBrowser, "open-browser", false, "Let the server open a browser tab")
	f.StringVar(&launchOpts.dir, "dir", "", "Working directory (default: current directory)")
	f.StringVar(&launchOpts.mapDir, "map-dir", "", "Local directory that mirrors the server directory")
	f.BoolVar(&launchOpts.noRegister, "no-register", false, "Do not persist the session for other clients")
}

// RegisterLaunchCmd registers the launch command with the given parent command.
func RegisterLaunchCmd(parent *cobra.Command) {
	parent.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	var lc launch.Configuration
	if launchOpts.noWizard {
		lc, err = launchOpts.configuration(a.Config)
		if err != nil {
			return err
		}
	} else {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("the launch wizard needs a terminal; pass --no-wizard to launch from flags")
		}
		kind, err := launch.ParseKind(a.Config.Server.Kind)
		if err != nil {
			return err
		}
		cwd, _ := os.Getwd()
		res, err := wizard.Run(wizard.Hints{
			Kind:             kind,
			OpenBrowser:      a.Config.Wizard.OpenBrowser,
			ShowRegister:     a.Config.Wizard.ShowRegister,
			DefaultDirectory: cwd,
		})
		if err != nil {
			return err
		}
		if res.Outcome != wizard.Accepted {
			fmt.Fprintln(out, styles.Hint.Render("Launch cancelled."))
			return nil
		}
		lc = res.Config
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	result, err := a.Launcher.Launch(ctx, lc)
	if err != nil {
		// The launcher's reporter has shown the failure already.
		return fmt.Errorf("%w: %w", ErrReported, err)
	}

	printLaunch(out, lc, result)
	return nil
}

// configuration maps the flags onto a launch configuration, using cfg for
// the defaults the flags leave open.
func (f launchFlags) configuration(cfg *config.Config) (launch.Configuration, error) {
	kindName := f.kind
	if kindName == "" {
		kindName = cfg.Server.Kind
	}
	kind, err := launch.ParseKind(kindName)
	if err != nil {
		return launch.Configuration{}, err
	}

	mode, err := launch.ParseTokenMode(f.tokenMode)
	if err != nil {
		return launch.Configuration{}, err
	}
	token := launch.Token{Mode: mode}
	if mode == launch.TokenSpecific {
		token.Value = f.token
	}

	dir := f.dir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return launch.Configuration{}, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	lc := launch.Configuration{
		Kind:                   kind,
		Token:                  token,
		Password:               f.password,
		CORS:                   !f.noCORS,
		OpenBrowser:            f.openBrowser,
		WorkingDirectory:       dir,
		RemoteDirectoryMapping: f.mapDir,
		RegisterWithHost:       !f.noRegister,
	}
	return lc, lc.Validate()
}

func printLaunch(w io.Writer, lc launch.Configuration, res *launcher.Result) {
	rec := res.Record
	fmt.Fprintln(w, styles.SuccessMsg.Render(fmt.Sprintf("Launched Jupyter %s on port %d", lc.Kind, rec.Port())))
	fmt.Fprintf(w, "  Session: %s\n", rec.SessionID)
	fmt.Fprintf(w, "  URL:     %s\n", connectURL(rec.BaseURL, rec.Token))
	if rec.MappedDirectory != "" {
		fmt.Fprintf(w, "  Mapped:  %s\n", rec.MappedDirectory)
	}
	if res.LogPath != "" {
		fmt.Fprintf(w, "  Log:     %s\n", res.LogPath)
	}

	if res.Duplicate != nil {
		fmt.Fprintln(w, styles.WarningMsg.Render(res.Duplicate.String()))
	}
	if !res.Ready {
		fmt.Fprintln(w, styles.WarningMsg.Render("The server did not answer the readiness probe; it may still be starting."))
	}
	if !lc.RegisterWithHost {
		fmt.Fprintln(w, styles.Hint.Render("Not registered: other labkeeper clients will not see this session."))
	} else if !res.Persisted {
		fmt.Fprintln(w, styles.WarningMsg.Render("The session could not be saved; see the diagnostic log."))
	}
}

func connectURL(baseURL, token string) string {
	if token == "" {
		return baseURL
	}
	return baseURL + "?token=" + token
}
