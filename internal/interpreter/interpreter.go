// Package interpreter resolves the python interpreter a notebook server is
// launched with, and derives the environment the server process runs in.
package interpreter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

// Environment is a resolved interpreter.
type Environment struct {
	// Executable is the absolute interpreter path.
	Executable string
	// Prefix is the installation or virtualenv root.
	Prefix string
}

// Dir returns the directory holding the executable.
func (e *Environment) Dir() string {
	return filepath.Dir(e.Executable)
}

// Env returns base with the interpreter directory and <prefix>/bin prepended
// to PATH. Other variables are passed through unchanged.
func (e *Environment) Env(base []string) []string {
	prepend := []string{e.Dir()}
	if bin := filepath.Join(e.Prefix, scriptsDir()); bin != e.Dir() {
		prepend = append(prepend, bin)
	}

	out := make([]string, 0, len(base)+1)
	found := false
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if ok && isPathKey(key) {
			found = true
			parts := prepend
			if value != "" {
				parts = append(append([]string{}, prepend...), value)
			}
			kv = key + "=" + strings.Join(parts, string(os.PathListSeparator))
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "PATH="+strings.Join(prepend, string(os.PathListSeparator)))
	}
	return out
}

func isPathKey(key string) bool {
	if runtime.GOOS == "windows" {
		return strings.EqualFold(key, "PATH")
	}
	return key == "PATH"
}

func scriptsDir() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

// Resolver supplies the interpreter for a launch.
type Resolver interface {
	Resolve(ctx context.Context) (*Environment, error)
}

// PathResolver resolves a configured interpreter path, or looks up the
// candidates on PATH in order when none is configured.
type PathResolver struct {
	// Path is an explicit interpreter; it may be a bare name or a path.
	Path string
	// Candidates are tried on PATH when Path is empty.
	Candidates []string

	// lookPath is exec.LookPath unless overridden in tests.
	lookPath func(string) (string, error)
}

// NewPathResolver creates a resolver for path, falling back to python3 and python.
func NewPathResolver(path string) *PathResolver {
	return &PathResolver{
		Path:       path,
		Candidates: []string{"python3", "python"},
		lookPath:   exec.LookPath,
	}
}

// Resolve returns the interpreter environment or an EnvironmentNotFound error.
func (r *PathResolver) Resolve(ctx context.Context) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := r.Candidates
	if r.Path != "" {
		names = []string{r.Path}
	}

	lookPath := r.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	var lastErr error
	for _, name := range names {
		path, err := lookPath(name)
		if err != nil {
			lastErr = err
			continue
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			lastErr = err
			continue
		}
		return &Environment{Executable: abs, Prefix: prefixOf(abs)}, nil
	}

	return nil, errors.EnvironmentNotFound(
		"no python interpreter found (tried "+strings.Join(names, ", ")+")", lastErr)
}

// prefixOf returns the root above a bin/ or Scripts/ directory, or the
// executable's directory when it is not in one.
func prefixOf(executable string) string {
	dir := filepath.Dir(executable)
	switch strings.ToLower(filepath.Base(dir)) {
	case "bin", "scripts":
		return filepath.Dir(dir)
	default:
		return dir
	}
}

// Static is a Resolver that always returns the same environment, or Err.
type Static struct {
	Environment *Environment
	Err         error
}

// Resolve implements Resolver.
func (s Static) Resolve(ctx context.Context) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Environment == nil {
		return nil, errors.EnvironmentNotFound("no interpreter configured", nil)
	}
	return s.Environment, nil
}
