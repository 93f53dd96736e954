//go:build unix

package supervisor

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/labkeeper/internal/errors"
	"github.com/Iron-Ham/labkeeper/internal/metrics"
)

func shellSpec(t *testing.T, script string) Spec {
	t.Helper()
	return Spec{
		Executable: "/bin/sh",
		Args:       []string{"-c", script},
		Env:        os.Environ(),
		Dir:        t.TempDir(),
		Kind:       "lab",
	}
}

func TestSpawn_ExposesPIDAndWritesLog(t *testing.T) {
	s := New(Options{StopGrace: time.Second})

	spec := shellSpec(t, "echo started; exec sleep 30")
	spec.LogPath = filepath.Join(t.TempDir(), "logs", "server-1.log")

	h, err := s.Spawn(context.Background(), spec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Terminate() })

	assert.Greater(t, h.PID(), 0)
	assert.True(t, processAlive(h.PID()))

	pgid, err := syscall.Getpgid(h.PID())
	require.NoError(t, err)
	assert.Equal(t, h.PID(), pgid, "server should lead its own process group")

	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(spec.LogPath)
		return strings.Contains(string(data), "started")
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSpawn_ExecutableMissing(t *testing.T) {
	m := metrics.New()
	s := New(Options{Metrics: m})

	_, err := s.Spawn(context.Background(), Spec{Executable: "/nonexistent/python3", Kind: "lab"})
	require.Error(t, err)
	assert.Equal(t, errors.CodeSpawnFailed, errors.GetCode(err))
}

func TestSpawn_CanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Options{}).Spawn(ctx, shellSpec(t, "exit 0"))
	assert.True(t, errors.Is(err, errors.ErrLaunchCanceled))
}

func TestSpawn_NoPIDKillsPartialProcess(t *testing.T) {
	s := New(Options{})

	var started *exec.Cmd
	s.start = func(cmd *exec.Cmd) (int, error) {
		started = cmd
		if err := cmd.Start(); err != nil {
			return 0, err
		}
		return 0, nil
	}

	_, err := s.Spawn(context.Background(), shellSpec(t, "exec sleep 30"))
	require.True(t, errors.Is(err, errors.ErrProcessIDUnavailable), "got %v", err)
	require.NotNil(t, started)
	require.NotNil(t, started.Process)

	assert.False(t, processAlive(started.Process.Pid), "partial process must be terminated")
}

func TestHandle_Terminate(t *testing.T) {
	s := New(Options{StopGrace: 5 * time.Second})

	h, err := s.Spawn(context.Background(), shellSpec(t, "exec sleep 30"))
	require.NoError(t, err)

	require.NoError(t, h.Terminate())
	select {
	case <-h.Done():
	default:
		t.Fatal("Done should be closed after Terminate returns")
	}
	assert.NoError(t, h.Terminate(), "second Terminate is a no-op")
}

func TestHandle_TerminateEscalatesToKill(t *testing.T) {
	m := metrics.New()
	s := New(Options{StopGrace: 200 * time.Millisecond, Metrics: m})

	h, err := s.Spawn(context.Background(), shellSpec(t, `trap "" TERM; sleep 30`))
	require.NoError(t, err)

	// Give the shell time to install the trap.
	time.Sleep(100 * time.Millisecond)

	begin := time.Now()
	require.NoError(t, h.Terminate())
	assert.GreaterOrEqual(t, time.Since(begin), 200*time.Millisecond)
	assert.False(t, processAlive(h.PID()))
}

func TestTerminatePID_Reattached(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	setProcessGroup(cmd)
	require.NoError(t, cmd.Start())
	go func() { _ = cmd.Wait() }()

	s := New(Options{StopGrace: 2 * time.Second})
	require.NoError(t, s.TerminatePID(cmd.Process.Pid))

	assert.Eventually(t, func() bool { return !processAlive(cmd.Process.Pid) }, 2*time.Second, 20*time.Millisecond)
	assert.NoError(t, s.TerminatePID(cmd.Process.Pid), "terminating a dead pid is a no-op")
}

func TestWarmUp_FixedDelay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(Options{Warmup: 2 * time.Second, Clock: clock})

	done := make(chan bool, 1)
	go func() { done <- s.WarmUp(context.Background(), "http://localhost:1/", nil) }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("WarmUp returned before the delay elapsed")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case ready := <-done:
		assert.True(t, ready, "no probe configured means ready after the delay")
	case <-time.After(5 * time.Second):
		t.Fatal("WarmUp did not return after the delay")
	}
}

func TestProcessAlive_OtherUsersProcess(t *testing.T) {
	// PID 1 always runs; unprivileged callers get EPERM from signal 0.
	assert.True(t, processAlive(1))
	assert.False(t, processAlive(1<<30))
}
