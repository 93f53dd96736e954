package launch

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

func freeProber(string, int) error { return nil }

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{
		Module:   "jupyter",
		BasePort: 8888,
		Ports:    NewPortAllocatorWithProber("127.0.0.1", freeProber),
		Tokens:   NewTokenSource(clockwork.NewFakeClockAt(time.UnixMilli(1700000000000))),
		Salt:     bytes.NewReader(bytes.Repeat([]byte{0xab}, 64)),
	}
}

func baseConfig(dir string) Configuration {
	return Configuration{
		Kind:             KindLab,
		Token:            Token{Mode: TokenRandom},
		CORS:             true,
		WorkingDirectory: dir,
	}
}

// flagValues returns the value following every occurrence of flag.
func flagValues(args []string, flag string) []string {
	var out []string
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			out = append(out, args[i+1])
		}
	}
	return out
}

func TestBuild_EmptyTokenScenario(t *testing.T) {
	dir := t.TempDir()
	b := newTestBuilder(t)

	cfg := baseConfig(dir)
	cfg.Token = Token{Mode: TokenEmpty}
	cfg.OpenBrowser = false

	p, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	n := len(p.Args)
	if n < 2 || p.Args[n-2] != "--port" || p.Args[n-1] != "8888" {
		t.Errorf("args should end with --port 8888, got %v", p.Args)
	}
	if !slices.Contains(p.Args, "--no-browser") {
		t.Error("--no-browser should be present")
	}
	for _, flag := range []string{"--NotebookApp.token", "--ServerApp.token"} {
		if v := flagValues(p.Args, flag); len(v) != 1 || v[0] != "" {
			t.Errorf("%s values = %q, want one empty string", flag, v)
		}
	}
	if p.AuthHeader() != nil {
		t.Error("empty token should not produce an auth header")
	}
}

func TestBuild_ArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	b := newTestBuilder(t)

	cfg := baseConfig(dir)
	cfg.Kind = KindNotebook
	cfg.Token = Token{Mode: TokenSpecific, Value: "s3cret"}
	cfg.Password = "pw"

	p, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := []string{
		"-m", "jupyter", "notebook", "--no-browser",
		"--NotebookApp.allow_origin", "*", "--ServerApp.allow_origin", "*",
		"--NotebookApp.token", "s3cret", "--ServerApp.token", "s3cret",
		"--NotebookApp.password", p.PasswordHash, "--ServerApp.password", p.PasswordHash,
		"--notebook-dir", p.Cwd, "--port", "8888",
	}
	if !slices.Equal(p.Args, want) {
		t.Errorf("args =\n%v\nwant\n%v", p.Args, want)
	}

	full := p.CommandLine("/usr/bin/python3")
	if full[0] != "/usr/bin/python3" || len(full) != len(want)+1 {
		t.Errorf("CommandLine() = %v", full)
	}
	if got := p.AuthHeader()["Authorization"]; got != "token s3cret" {
		t.Errorf("AuthHeader() = %q", got)
	}
	if got := p.BaseURL("localhost"); got != "http://localhost:8888/" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func TestBuild_OptionalFlags(t *testing.T) {
	dir := t.TempDir()
	b := newTestBuilder(t)

	cfg := baseConfig(dir)
	cfg.CORS = false
	cfg.OpenBrowser = true

	p, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if slices.Contains(p.Args, "--no-browser") {
		t.Error("--no-browser should be absent when opening the browser")
	}
	if slices.Contains(p.Args, "--NotebookApp.allow_origin") {
		t.Error("CORS flags should be absent when disabled")
	}
	for _, flag := range []string{"--NotebookApp.password", "--ServerApp.password"} {
		if v := flagValues(p.Args, flag); len(v) != 1 || v[0] != "" {
			t.Errorf("%s should be present with an empty value, got %q", flag, v)
		}
	}
}

func TestBuild_ExactlyOneTokenMode(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name  string
		token Token
		check func(string) bool
	}{
		{"random", Token{Mode: TokenRandom}, func(v string) bool { return v == "1700000000000" }},
		{"empty", Token{Mode: TokenEmpty}, func(v string) bool { return v == "" }},
		{"specific", Token{Mode: TokenSpecific, Value: "abc"}, func(v string) bool { return v == "abc" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			cfg := baseConfig(dir)
			cfg.Token = tt.token

			p, err := b.Build(cfg)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}

			gen1 := flagValues(p.Args, "--NotebookApp.token")
			gen2 := flagValues(p.Args, "--ServerApp.token")
			if len(gen1) != 1 || len(gen2) != 1 {
				t.Fatalf("each token flag must appear once, got %v / %v", gen1, gen2)
			}
			if gen1[0] != gen2[0] || gen1[0] != p.Token {
				t.Errorf("token flags disagree: %q %q (token %q)", gen1[0], gen2[0], p.Token)
			}
			if !tt.check(p.Token) {
				t.Errorf("unexpected token %q for mode %s", p.Token, tt.token.Mode)
			}
		})
	}
}

func TestBuild_BlankSpecificToken(t *testing.T) {
	for _, value := range []string{"", "   ", "\t\n"} {
		b := newTestBuilder(t)
		cfg := baseConfig(t.TempDir())
		cfg.Token = Token{Mode: TokenSpecific, Value: value}

		_, err := b.Build(cfg)
		if !errors.Is(err, errors.ErrInvalidToken) {
			t.Errorf("Build(%q) error = %v, want ErrInvalidToken", value, err)
		}
		if b.Ports.Reserved(8888) {
			t.Error("a rejected configuration must not reserve a port")
		}
	}
}

func TestBuild_SequentialLaunchesGetDistinctPorts(t *testing.T) {
	b := newTestBuilder(t)
	cfg := baseConfig(t.TempDir())

	first, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	second, err := b.Build(cfg)
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}

	if first.Port == second.Port {
		t.Errorf("both launches got port %d", first.Port)
	}
	if first.Port != 8888 || second.Port != 8889 {
		t.Errorf("ports = %d, %d; want 8888, 8889", first.Port, second.Port)
	}
	if first.Token == second.Token {
		t.Error("random tokens should not repeat")
	}
}

func TestConfiguration_Validate(t *testing.T) {
	cfg := baseConfig("/tmp")
	cfg.Kind = "voila"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "voila") {
		t.Errorf("Validate() = %v, want kind error", err)
	}
}

func TestParseKindAndMode(t *testing.T) {
	if k, err := ParseKind(" Lab "); err != nil || k != KindLab {
		t.Errorf("ParseKind(Lab) = %v, %v", k, err)
	}
	if _, err := ParseKind("voila"); err == nil {
		t.Error("ParseKind(voila) should fail")
	}

	for in, want := range map[string]TokenMode{"": TokenRandom, "random": TokenRandom, "EMPTY": TokenEmpty, "specific": TokenSpecific} {
		if got, err := ParseTokenMode(in); err != nil || got != want {
			t.Errorf("ParseTokenMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseTokenMode("uuid"); err == nil {
		t.Error("ParseTokenMode(uuid) should fail")
	}
}
