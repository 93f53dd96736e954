package launch

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

// Flag pairs covering the classic notebook server and jupyter_server.
const (
	flagNotebookOrigin   = "--NotebookApp.allow_origin"
	flagServerOrigin     = "--ServerApp.allow_origin"
	flagNotebookToken    = "--NotebookApp.token"
	flagServerToken      = "--ServerApp.token"
	flagNotebookPassword = "--NotebookApp.password"
	flagServerPassword   = "--ServerApp.password"
	flagNoBrowser        = "--no-browser"
	flagNotebookDir      = "--notebook-dir"
	flagPort             = "--port"
)

// Parameters are the immutable values derived from a Configuration.
type Parameters struct {
	// Args follow the interpreter: -m <module> <kind> ...
	Args         []string
	Token        string
	PasswordHash string // empty when no password was entered
	Port         int
	Cwd          string
}

// CommandLine returns the full argv with the interpreter prepended.
func (p *Parameters) CommandLine(interpreter string) []string {
	return append([]string{interpreter}, p.Args...)
}

// BaseURL returns the server's root URL on host, with a trailing slash.
func (p *Parameters) BaseURL(host string) string {
	return fmt.Sprintf("http://%s:%d/", host, p.Port)
}

// AuthHeader returns the Authorization header for the token, or nil when the
// token is empty.
func (p *Parameters) AuthHeader() map[string]string {
	if p.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "token " + p.Token}
}

// Builder derives Parameters from a Configuration.
type Builder struct {
	// Module is run with -m, normally "jupyter".
	Module   string
	BasePort int
	Ports    *PortAllocator
	Tokens   *TokenSource
	// Salt supplies salt bytes; nil uses crypto/rand.
	Salt io.Reader
}

// Build validates cfg, reserves a port and assembles the argument vector.
// It fails with InvalidToken before any port is reserved.
func (b *Builder) Build(cfg Configuration) (*Parameters, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cwd, err := filepath.Abs(cfg.WorkingDirectory)
	if err != nil {
		return nil, errors.Wrap(err, "resolve working directory")
	}

	var hash string
	if cfg.HasPassword() {
		h, err := HashPassword(cfg.Password, b.Salt)
		if err != nil {
			return nil, err
		}
		hash = h.String()
	}

	port, err := b.Ports.Allocate(b.BasePort)
	if err != nil {
		return nil, err
	}

	token := b.Tokens.Materialize(cfg.Token)

	return &Parameters{
		Args:         assemble(b.Module, cfg, token, hash, cwd, port),
		Token:        token,
		PasswordHash: hash,
		Port:         port,
		Cwd:          cwd,
	}, nil
}

func assemble(module string, cfg Configuration, token, hash, cwd string, port int) []string {
	args := []string{"-m", module, string(cfg.Kind)}
	if !cfg.OpenBrowser {
		args = append(args, flagNoBrowser)
	}
	if cfg.CORS {
		args = append(args, flagNotebookOrigin, "*", flagServerOrigin, "*")
	}
	args = append(args,
		flagNotebookToken, token,
		flagServerToken, token,
		flagNotebookPassword, hash,
		flagServerPassword, hash,
		flagNotebookDir, cwd,
		flagPort, fmt.Sprint(port),
	)
	return args
}
