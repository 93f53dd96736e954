package session

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/labkeeper/internal/app"
	"github.com/Iron-Ham/labkeeper/internal/event"
	"github.com/Iron-Ham/labkeeper/internal/server"
	"github.com/Iron-Ham/labkeeper/internal/session"
)

// pruneInterval is how often serve drops sessions whose server has exited.
const pruneInterval = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve running sessions over HTTP",
	Long: `Serve the running sessions to other clients over HTTP: list and resolve
sessions, stop them, and stream session changes over a websocket.

With session.watch_store enabled, sessions launched by other labkeeper
processes appear as soon as they are saved.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default api.listen)")
}

// RegisterServeCmd registers the serve command with the given parent command.
func RegisterServeCmd(parent *cobra.Command) {
	parent.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveListen
	if addr == "" {
		addr = a.Config.API.Listen
	}

	opts := server.Options{
		Surface:  a.Surface,
		Handle:   a.Provider,
		Registry: a.Registry,
		Logger:   a.Logger,
	}
	if a.Config.API.Metrics {
		opts.Metrics = a.Metrics
	}
	srv := server.New(opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Config.Session.WatchStore {
		if err := os.MkdirAll(a.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		go watchStore(ctx, a)
	}
	go pruneExited(ctx, a, session.OSInventory{}, pruneInterval)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %d session(s) on http://%s\n", a.Registry.Len(), addr)
	return srv.ListenAndServe(ctx, addr)
}

// watchStore reconciles again whenever another process appends to the store.
func watchStore(ctx context.Context, a *app.App) {
	path := a.Store.Path()
	err := session.WatchStore(ctx, path, func() {
		a.Bus.Publish(event.NewStoreChangedEvent(path))
		res, err := a.Restore()
		if err != nil {
			a.Logger.Warn("session store could not be read", "error", err.Error())
			return
		}
		if len(res.Restored) > 0 {
			a.Logger.Info("picked up sessions from store", "count", len(res.Restored))
		}
	})
	if err != nil {
		a.Logger.Error("store watcher stopped", "error", err.Error())
	}
}

// pruneExited forgets restored sessions whose process is gone, so the API
// does not keep handing out dead servers.
func pruneExited(ctx context.Context, a *app.App, inv session.Inventory, every time.Duration) {
	ticker := a.Clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := forgetExited(a, inv); n > 0 {
				a.Logger.Info("pruned exited sessions", "count", n)
			}
		}
	}
}

func forgetExited(a *app.App, inv session.Inventory) int {
	n := 0
	for _, rec := range a.Registry.List() {
		pid, err := rec.PID()
		if err != nil || !inv.Contains(pid) {
			if a.Registry.Forget(rec.SessionID) {
				a.Ports.Release(rec.Port())
				n++
			}
		}
	}
	return n
}
