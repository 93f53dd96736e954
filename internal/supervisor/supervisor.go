// Package supervisor spawns notebook server processes, exposes their process
// id, and terminates them. Spawned servers run in their own process group so
// they outlive the launching CLI and can be stopped as a unit.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/logging"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
)

// Spec describes one server process.
type Spec struct {
	Executable string
	Args       []string
	Env        []string
	Dir        string
	// LogPath receives stdout and stderr. Empty discards output.
	LogPath string
	// Kind labels metrics ("notebook" or "lab").
	Kind string
}

// Options configure a Supervisor.
type Options struct {
	// Warmup is the fixed delay WarmUp always waits.
	Warmup time.Duration
	// StopGrace is the SIGTERM to SIGKILL interval.
	StopGrace time.Duration
	// Probe runs after the warm-up when non-nil.
	Probe   *ReadinessProbe
	Clock   clockwork.Clock
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// Supervisor starts and stops server processes.
type Supervisor struct {
	warmup  time.Duration
	grace   time.Duration
	probe   *ReadinessProbe
	clock   clockwork.Clock
	logger  *logging.Logger
	metrics *metrics.Collector

	// start launches cmd and returns the observed pid; replaced in tests.
	start func(cmd *exec.Cmd) (int, error)
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Supervisor{
		warmup:  opts.Warmup,
		grace:   opts.StopGrace,
		probe:   opts.Probe,
		clock:   opts.Clock,
		logger:  opts.Logger.WithComponent("supervisor"),
		metrics: opts.Metrics,
		start:   startCmd,
	}
}

func startCmd(cmd *exec.Cmd) (int, error) {
	if err := cmd.Start(); err != nil {
		return 0, err
	}
	if cmd.Process == nil {
		return 0, nil
	}
	return cmd.Process.Pid, nil
}

// Spawn starts the process described by spec. It fails with SpawnFailed when
// the executable cannot be started and with ProcessIDUnavailable when no pid
// is observable, in which case anything that did start is killed first.
//
// ctx is not attached to the process: canceling it later never kills the server.
func (s *Supervisor) Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(err)
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	setProcessGroup(cmd)

	logFile, err := openLog(spec.LogPath)
	if err != nil {
		return nil, err
	}
	if logFile != nil {
		cmd.Stdout = logFile
		cmd.Stderr = logFile
		// The child holds its own descriptor once started.
		defer logFile.Close()
	}

	pid, err := s.start(cmd)
	if err != nil {
		s.metrics.Spawn(spec.Kind, err)
		return nil, errors.SpawnFailed(spec.Executable, err)
	}
	if pid <= 0 {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
		}
		err := errors.ProcessIDUnavailable(nil)
		s.metrics.Spawn(spec.Kind, err)
		return nil, err
	}
	s.metrics.Spawn(spec.Kind, nil)

	h := &Handle{
		pid:  pid,
		cmd:  cmd,
		sup:  s,
		done: make(chan struct{}),
	}
	go h.wait()

	s.logger.Info("spawned server",
		"pid", pid,
		"executable", spec.Executable,
		"dir", spec.Dir,
		"log", spec.LogPath)
	return h, nil
}

func openLog(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create server log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}
	return f, nil
}

// WarmUp waits the fixed warm-up delay, then runs the readiness probe if one
// is configured. The delay is unconditional. A probe that does not succeed is
// logged and reported as false; it is never an error.
func (s *Supervisor) WarmUp(ctx context.Context, baseURL string, header map[string]string) bool {
	if s.warmup > 0 {
		<-s.clock.After(s.warmup)
	}

	if s.probe == nil {
		s.metrics.Probe("skipped")
		return true
	}

	if err := s.probe.Wait(ctx, baseURL, header); err != nil {
		s.metrics.Probe("timeout")
		s.logger.Warn("readiness probe did not succeed", "url", baseURL, "error", err.Error())
		return false
	}
	s.metrics.Probe("ready")
	return true
}

// TerminatePID stops a process this Supervisor did not spawn, such as a
// server reattached after a restart. It signals the process group with
// SIGTERM, polls for exit until the grace period ends, then sends SIGKILL.
func (s *Supervisor) TerminatePID(pid int) error {
	if !processAlive(pid) {
		return nil
	}
	if err := terminateGroup(pid); err != nil {
		return fmt.Errorf("terminate %d: %w", pid, err)
	}

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := s.clock.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		deadline := s.clock.After(s.grace)
		for {
			select {
			case <-ticker.Chan():
				if !processAlive(pid) {
					return
				}
			case <-deadline:
				return
			}
		}
	}()
	<-exited

	if !processAlive(pid) {
		s.metrics.Termination("term")
		return nil
	}
	s.metrics.Termination("kill")
	s.logger.Warn("server ignored SIGTERM, killing", "pid", pid)
	return killGroup(pid)
}

// Handle owns exactly one spawned process.
type Handle struct {
	pid int
	cmd *exec.Cmd
	sup *Supervisor

	done    chan struct{}
	exitErr error

	termOnce sync.Once
	termErr  error
}

// PID returns the process id; it doubles as the session id.
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitErr returns the Wait error. It is only meaningful after Done is closed.
func (h *Handle) ExitErr() error {
	return h.exitErr
}

func (h *Handle) wait() {
	h.exitErr = h.cmd.Wait()
	close(h.done)
}

// Terminate sends SIGTERM to the process group and escalates to SIGKILL
// after the grace period. Repeat calls return the first result.
func (h *Handle) Terminate() error {
	h.termOnce.Do(func() {
		h.termErr = h.terminate()
	})
	return h.termErr
}

func (h *Handle) terminate() error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := terminateGroup(h.pid); err != nil {
		select {
		case <-h.done:
			return nil
		default:
		}
		return fmt.Errorf("terminate %d: %w", h.pid, err)
	}

	select {
	case <-h.done:
		h.sup.metrics.Termination("term")
		return nil
	case <-h.sup.clock.After(h.sup.grace):
	}

	h.sup.metrics.Termination("kill")
	h.sup.logger.Warn("server ignored SIGTERM, killing", "pid", h.pid)
	if err := killGroup(h.pid); err != nil {
		return fmt.Errorf("kill %d: %w", h.pid, err)
	}
	<-h.done
	return nil
}
