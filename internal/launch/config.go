// Package launch turns a validated launch configuration into the argument
// vector and derived secrets (token, password hash, port) for a notebook
// server process.
package launch

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

// Kind selects the server subcommand.
type Kind string

const (
	KindNotebook Kind = "notebook"
	KindLab      Kind = "lab"
)

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNotebook:
		return KindNotebook, nil
	case KindLab:
		return KindLab, nil
	default:
		return "", fmt.Errorf("unknown server kind %q (want notebook or lab)", s)
	}
}

// TokenMode is the radio choice for how the server token is produced.
type TokenMode int

const (
	// TokenRandom derives a token from the wall clock.
	TokenRandom TokenMode = iota
	// TokenEmpty runs the server with an empty token.
	TokenEmpty
	// TokenSpecific uses a caller-supplied literal.
	TokenSpecific
)

// String returns the flag spelling of the mode.
func (m TokenMode) String() string {
	switch m {
	case TokenRandom:
		return "random"
	case TokenEmpty:
		return "empty"
	case TokenSpecific:
		return "specific"
	default:
		return "unknown"
	}
}

// ParseTokenMode converts "random", "empty" or "specific" into a TokenMode.
func ParseTokenMode(s string) (TokenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random", "":
		return TokenRandom, nil
	case "empty", "none":
		return TokenEmpty, nil
	case "specific":
		return TokenSpecific, nil
	default:
		return TokenRandom, fmt.Errorf("unknown token mode %q", s)
	}
}

// Token is the selected member of the token group. Value is only meaningful
// for TokenSpecific.
type Token struct {
	Mode  TokenMode
	Value string
}

// Configuration is the validated set of options collected by the wizard.
type Configuration struct {
	Kind  Kind
	Token Token
	// Password is the plain password. Empty means none was entered.
	Password    string
	CORS        bool
	OpenBrowser bool
	// WorkingDirectory becomes --notebook-dir and the process cwd.
	WorkingDirectory string
	// RemoteDirectoryMapping is recorded on the session; it does not affect argv.
	RemoteDirectoryMapping string
	RegisterWithHost       bool
}

// HasPassword reports whether a password was entered.
func (c Configuration) HasPassword() bool {
	return c.Password != ""
}

// Validate enforces that a specific token is non-blank.
func (c Configuration) Validate() error {
	if c.Token.Mode == TokenSpecific && strings.TrimSpace(c.Token.Value) == "" {
		return errors.InvalidToken()
	}
	if c.Kind != KindNotebook && c.Kind != KindLab {
		return fmt.Errorf("invalid server kind %q", c.Kind)
	}
	return nil
}
