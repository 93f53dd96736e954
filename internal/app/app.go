// Package app assembles the labkeeper runtime from a loaded Config. Commands
// build one App per invocation and close it on exit.
package app

import (
	"io"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/config"
	"github.com/Iron-Ham/labkeeper/internal/event"
	"github.com/Iron-Ham/labkeeper/internal/interpreter"
	"github.com/Iron-Ham/labkeeper/internal/launch"
	"github.com/Iron-Ham/labkeeper/internal/launcher"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
	"github.com/Iron-Ham/labkeeper/internal/provider"
	"github.com/Iron-Ham/labkeeper/internal/registry"
	"github.com/Iron-Ham/labkeeper/internal/session"
	"github.com/Iron-Ham/labkeeper/internal/supervisor"
)

// ProviderID is the id the CLI registers its session provider under.
const ProviderID = "labkeeper"

// App holds the wired components shared by every command.
type App struct {
	Config     *config.Config
	DataDir    string
	Logger     *logging.Logger
	Metrics    *metrics.Collector
	Bus        *event.Bus
	Registry   *registry.Registry
	Store      *session.Store
	Ports      *launch.PortAllocator
	Supervisor *supervisor.Supervisor
	Launcher   *launcher.Launcher
	Surface    *provider.Surface
	Provider   *provider.Handle
	Clock      clockwork.Clock
}

// Options override parts of the wiring, mostly for tests.
type Options struct {
	// Out receives user-facing failure reports; defaults to stderr.
	Out      io.Writer
	Resolver interpreter.Resolver
	Clock    clockwork.Clock
}

// New wires an App from cfg. The diagnostic log lives in the data directory
// unless logging is disabled.
func New(cfg *config.Config, opts Options) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	dataDir := cfg.Session.ResolveDataDir()

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger(dataDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, err
		}
		logger = l
	}

	collector := metrics.New()
	bus := event.NewBus()
	reg := registry.New(bus, registry.WithLogger(logger), registry.WithMetrics(collector))
	store := session.NewStore(config.StorePath(dataDir), logger)

	var probe *supervisor.ReadinessProbe
	if cfg.Server.ReadinessProbe {
		probe = supervisor.NewReadinessProbe(cfg.Server.ReadinessTimeout())
	}
	sup := supervisor.New(supervisor.Options{
		Warmup:    cfg.Server.Warmup(),
		StopGrace: cfg.Server.StopGrace(),
		Probe:     probe,
		Clock:     opts.Clock,
		Logger:    logger,
		Metrics:   collector,
	})

	ports := launch.NewPortAllocatorWithProber(cfg.Server.Host, launch.ListenProber)
	builder := &launch.Builder{
		Module:   cfg.Server.Module,
		BasePort: cfg.Server.BasePort,
		Ports:    ports,
		Tokens:   launch.NewTokenSource(opts.Clock),
	}

	resolver := opts.Resolver
	if resolver == nil {
		resolver = interpreter.NewPathResolver(cfg.Interpreter.Path)
	}

	l := launcher.New(launcher.Options{
		Resolver:   resolver,
		Builder:    builder,
		Supervisor: sup,
		Registry:   reg,
		Store:      store,
		Host:       cfg.Server.Host,
		LogDir:     config.ServerLogDir(dataDir),
		Reporter:   launcher.NewReporter(opts.Out, logger),
		Logger:     logger,
		Metrics:    collector,
		Clock:      opts.Clock,
	})

	surface := provider.NewSurface(reg)

	return &App{
		Config:     cfg,
		DataDir:    dataDir,
		Logger:     logger,
		Metrics:    collector,
		Bus:        bus,
		Registry:   reg,
		Store:      store,
		Ports:      ports,
		Supervisor: sup,
		Launcher:   l,
		Surface:    surface,
		Provider:   surface.RegisterProvider(ProviderID, "Jupyter (labkeeper)"),
		Clock:      opts.Clock,
	}, nil
}

// Restore reattaches persisted sessions whose servers are still running.
func (a *App) Restore() (session.ReconcileResult, error) {
	return a.Launcher.Restore(session.OSInventory{})
}

// Close flushes the diagnostic log.
func (a *App) Close() error {
	return a.Logger.Close()
}
