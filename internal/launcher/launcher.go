// Package launcher runs a launch end to end: interpreter resolution,
// argument building, spawn, warm-up, registration and persistence. It also
// restores persisted sessions into the registry at startup.
package launcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/event"
	"github.com/Iron-Ham/labkeeper/internal/interpreter"
	"github.com/Iron-Ham/labkeeper/internal/launch"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
	"github.com/Iron-Ham/labkeeper/internal/registry"
	"github.com/Iron-Ham/labkeeper/internal/session"
	"github.com/Iron-Ham/labkeeper/internal/supervisor"
)

// Spawner is the part of the process supervisor a launch needs.
type Spawner interface {
	Spawn(ctx context.Context, spec supervisor.Spec) (*supervisor.Handle, error)
	WarmUp(ctx context.Context, baseURL string, header map[string]string) bool
	TerminatePID(pid int) error
}

// Options wire a Launcher.
type Options struct {
	Resolver   interpreter.Resolver
	Builder    *launch.Builder
	Supervisor Spawner
	Registry   *registry.Registry
	// Store is optional; without it sessions are not persisted.
	Store *session.Store
	// Host is used in session base URLs.
	Host string
	// LogDir receives server-<launch id>.log files. Empty discards output.
	LogDir string

	Reporter *Reporter
	Logger   *logging.Logger
	Metrics  *metrics.Collector
	Clock    clockwork.Clock
	// Environ supplies the base environment; defaults to os.Environ.
	Environ func() []string
}

// Launcher is safe for concurrent use.
type Launcher struct {
	resolver interpreter.Resolver
	builder  *launch.Builder
	spawner  Spawner
	registry *registry.Registry
	store    *session.Store
	host     string
	logDir   string

	reporter *Reporter
	logger   *logging.Logger
	metrics  *metrics.Collector
	clock    clockwork.Clock
	environ  func() []string
	newID    func() string
}

// New creates a Launcher.
func New(opts Options) *Launcher {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Reporter == nil {
		opts.Reporter = NewReporter(nil, opts.Logger)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	return &Launcher{
		resolver: opts.Resolver,
		builder:  opts.Builder,
		spawner:  opts.Supervisor,
		registry: opts.Registry,
		store:    opts.Store,
		host:     opts.Host,
		logDir:   opts.LogDir,
		reporter: opts.Reporter,
		logger:   opts.Logger.WithComponent("launcher"),
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		environ:  opts.Environ,
		newID:    uuid.NewString,
	}
}

// Result describes a successful launch.
type Result struct {
	LaunchID   string
	Record     session.Record
	Parameters *launch.Parameters
	Handle     *supervisor.Handle
	// Disposable is nil when the registry already held the session id.
	Disposable registry.Disposable
	Duplicate  *registry.DuplicateWarning
	// Ready is false when the readiness probe ran and did not succeed.
	Ready     bool
	Persisted bool
	LogPath   string
}

// Launch starts one server for cfg. Failures are reported through the
// Reporter and returned; nothing is retried. ctx is checked before and after
// interpreter resolution only; canceling it later never stops the server.
func (l *Launcher) Launch(ctx context.Context, cfg launch.Configuration) (*Result, error) {
	launchID := l.newID()
	log := l.logger.WithLaunch(launchID)
	started := l.clock.Now()
	kind := string(cfg.Kind)

	l.publish(event.NewLaunchStartedEvent(launchID, kind))
	log.Info("launch started", "kind", kind, "token_mode", cfg.Token.Mode.String(), "cors", cfg.CORS)

	res, err := l.launch(ctx, launchID, cfg, log)
	if err != nil {
		code := string(errors.GetCode(err))
		var le *errors.LaunchError
		if errors.As(err, &le) {
			le.WithLaunchID(launchID)
		}
		l.metrics.LaunchFailure(code)
		l.publish(event.NewLaunchFailedEvent(launchID, code, err))
		l.reporter.Failure(launchID, err)
		return nil, err
	}

	elapsed := l.clock.Since(started)
	l.metrics.LaunchDuration(kind, elapsed)
	l.publish(event.NewLaunchSucceededEvent(launchID, res.Record.SessionID, res.Parameters.Port, elapsed))
	log.Info("launch succeeded",
		"session_id", res.Record.SessionID,
		"base_url", res.Record.BaseURL,
		"duration_ms", elapsed.Milliseconds())
	return res, nil
}

func (l *Launcher) launch(ctx context.Context, launchID string, cfg launch.Configuration, log *logging.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}
	env, err := l.resolver.Resolve(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrEnvironmentNotFound) {
			return nil, err
		}
		return nil, errors.EnvironmentNotFound("interpreter resolution failed", err)
	}
	if env == nil || env.Executable == "" {
		return nil, errors.EnvironmentNotFound("resolver returned no interpreter", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}

	params, err := l.builder.Build(cfg)
	if err != nil {
		return nil, err
	}
	log.Debug("launch parameters built", "port", params.Port, "cwd", params.Cwd, "args", len(params.Args))

	var logPath string
	if l.logDir != "" {
		logPath = filepath.Join(l.logDir, fmt.Sprintf("server-%s.log", launchID))
	}

	handle, err := l.spawner.Spawn(ctx, supervisor.Spec{
		Executable: env.Executable,
		Args:       params.Args,
		Env:        env.Env(l.environ()),
		Dir:        params.Cwd,
		LogPath:    logPath,
		Kind:       string(cfg.Kind),
	})
	if err != nil {
		l.builder.Ports.Release(params.Port)
		return nil, err
	}

	baseURL := params.BaseURL(l.host)
	ready := l.spawner.WarmUp(ctx, baseURL, params.AuthHeader())

	rec := session.Record{
		SessionID:       strconv.Itoa(handle.PID()),
		BaseURL:         baseURL,
		Token:           params.Token,
		Label:           fmt.Sprintf("Jupyter %s on port %d", cfg.Kind, params.Port),
		MappedDirectory: cfg.RemoteDirectoryMapping,
		AuthHeader:      params.AuthHeader(),
		Kind:            string(cfg.Kind),
		Directory:       params.Cwd,
		LaunchedAt:      l.clock.Now().UTC(),
	}

	res := &Result{
		LaunchID:   launchID,
		Record:     rec,
		Parameters: params,
		Handle:     handle,
		Ready:      ready,
		LogPath:    logPath,
	}
	if !ready {
		l.reporter.Warning(launchID, fmt.Sprintf("server at %s did not answer the readiness probe; it may still be starting", baseURL))
	}

	res.Disposable, res.Duplicate = l.registry.Add(rec, l.releasing(params.Port, handle.Terminate))
	if res.Duplicate != nil {
		log.Warn("launched server shares a registered session id", "session_id", rec.SessionID)
	} else {
		go l.forgetOnExit(handle, rec.SessionID, params.Port)
	}

	if cfg.RegisterWithHost && l.store != nil {
		if err := l.store.Persist(rec); err != nil {
			// The session stays live; it just will not survive a restart.
			log.Warn("failed to persist session", "session_id", rec.SessionID, "error", err.Error())
		} else {
			res.Persisted = true
		}
	}
	return res, nil
}

// forgetOnExit drops a session whose process exits on its own and frees its
// port. Sessions already removed through the registry released it there.
func (l *Launcher) forgetOnExit(h *supervisor.Handle, sessionID string, port int) {
	<-h.Done()
	if l.registry.Forget(sessionID) {
		l.releasePort(port)
		l.logger.Info("server exited", "session_id", sessionID, "error", fmt.Sprint(h.ExitErr()))
	}
}

// Restore reconciles the store against inv and registers every survivor
// with a disposal that terminates its process. Errors are logged and
// returned for information only; startup continues either way.
func (l *Launcher) Restore(inv session.Inventory) (session.ReconcileResult, error) {
	if l.store == nil {
		return session.ReconcileResult{}, nil
	}

	result, err := l.store.LoadAndReconcile(inv, l.registry.Contains)
	if err != nil {
		l.logger.Warn("session store could not be reconciled", "path", l.store.Path(), "error", err.Error())
	}

	for i := 0; i < result.Skipped; i++ {
		l.metrics.Reconciled("malformed")
	}
	for _, id := range result.Stale {
		l.metrics.Reconciled("stale")
		l.logger.Debug("dropping stale session", "error", errors.StaleSession(id).Error())
	}
	for range result.AlreadyRegistered {
		l.metrics.Reconciled("duplicate")
	}

	for _, rec := range result.Restored {
		pid, _ := rec.PID()
		if _, warn := l.registry.Restore(rec, l.releasing(rec.Port(), l.terminator(pid))); warn != nil {
			l.metrics.Reconciled("duplicate")
			continue
		}
		if port := rec.Port(); port > 0 && l.builder != nil && l.builder.Ports != nil {
			l.builder.Ports.Reserve(port)
		}
		l.metrics.Reconciled("restored")
	}
	return result, err
}

func (l *Launcher) terminator(pid int) registry.DisposeFunc {
	return func() error {
		return l.spawner.TerminatePID(pid)
	}
}

// releasing wraps dispose so the session's port is freed once the registry
// removes it, whether or not termination succeeds.
func (l *Launcher) releasing(port int, dispose registry.DisposeFunc) registry.DisposeFunc {
	return func() error {
		defer l.releasePort(port)
		return dispose()
	}
}

func (l *Launcher) releasePort(port int) {
	if port > 0 && l.builder != nil && l.builder.Ports != nil {
		l.builder.Ports.Release(port)
	}
}

func (l *Launcher) publish(e event.Event) {
	if l.registry != nil {
		l.registry.Bus().Publish(e)
	}
}
