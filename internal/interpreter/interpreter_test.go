package interpreter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

func TestEnvironment_Env(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}

	t.Run("virtualenv prepends bin once", func(t *testing.T) {
		env := &Environment{Executable: "/venv/bin/python", Prefix: "/venv"}
		got := env.Env([]string{"HOME=/home/u", "PATH=/usr/bin:/bin"})

		want := []string{"HOME=/home/u", "PATH=/venv/bin:/usr/bin:/bin"}
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Errorf("Env() = %v, want %v", got, want)
		}
	})

	t.Run("interpreter outside bin adds both", func(t *testing.T) {
		env := &Environment{Executable: "/opt/py/python", Prefix: "/opt/py"}
		got := env.Env([]string{"PATH=/usr/bin"})
		if got[0] != "PATH=/opt/py:/opt/py/bin:/usr/bin" {
			t.Errorf("Env() = %v", got)
		}
	})

	t.Run("missing PATH is added", func(t *testing.T) {
		env := &Environment{Executable: "/venv/bin/python", Prefix: "/venv"}
		got := env.Env([]string{"HOME=/h"})
		if len(got) != 2 || got[1] != "PATH=/venv/bin" {
			t.Errorf("Env() = %v", got)
		}
	})

	t.Run("empty PATH has no trailing separator", func(t *testing.T) {
		env := &Environment{Executable: "/venv/bin/python", Prefix: "/venv"}
		got := env.Env([]string{"PATH="})
		if got[0] != "PATH=/venv/bin" {
			t.Errorf("Env() = %v", got)
		}
	})
}

func TestPathResolver_Candidates(t *testing.T) {
	r := NewPathResolver("")
	r.lookPath = func(name string) (string, error) {
		if name == "python" {
			return "/usr/local/bin/python", nil
		}
		return "", exec.ErrNotFound
	}

	env, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if env.Executable != "/usr/local/bin/python" {
		t.Errorf("Executable = %q", env.Executable)
	}
	if env.Prefix != "/usr/local" {
		t.Errorf("Prefix = %q, want /usr/local", env.Prefix)
	}
}

func TestPathResolver_NotFound(t *testing.T) {
	r := NewPathResolver("")
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, errors.ErrEnvironmentNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrEnvironmentNotFound", err)
	}
	if !errors.Is(err, exec.ErrNotFound) {
		t.Error("lookup error should be kept as the cause")
	}
}

func TestPathResolver_ExplicitPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires executable bit")
	}
	dir := filepath.Join(t.TempDir(), "env", "bin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	exe := filepath.Join(dir, "python")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatal(err)
	}

	env, err := NewPathResolver(exe).Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if env.Prefix != filepath.Dir(dir) {
		t.Errorf("Prefix = %q, want %q", env.Prefix, filepath.Dir(dir))
	}

	_, err = NewPathResolver(filepath.Join(dir, "missing")).Resolve(context.Background())
	if !errors.Is(err, errors.ErrEnvironmentNotFound) {
		t.Errorf("missing explicit path error = %v", err)
	}
}

func TestResolve_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPathResolver("").Resolve(ctx); err != context.Canceled {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
	if _, err := (Static{Environment: &Environment{}}).Resolve(ctx); err != context.Canceled {
		t.Errorf("Static.Resolve() error = %v", err)
	}
}

func TestStatic(t *testing.T) {
	if _, err := (Static{}).Resolve(context.Background()); !errors.Is(err, errors.ErrEnvironmentNotFound) {
		t.Errorf("empty Static error = %v", err)
	}
	env := &Environment{Executable: "/x/bin/python"}
	got, err := Static{Environment: env}.Resolve(context.Background())
	if err != nil || got != env {
		t.Errorf("Static.Resolve() = %v, %v", got, err)
	}
}
