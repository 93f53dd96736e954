// Package testutil provides testing utilities for labkeeper tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/Iron-Ham/labkeeper/internal/session"
)

// ArgsEnv names the variable a fake interpreter writes its argv to.
const ArgsEnv = "LABKEEPER_TEST_ARGS"

// FakeInterpreter writes an executable named python3 that records its argv
// to the file named by $LABKEEPER_TEST_ARGS and then sleeps like a server
// would, or exits at once when exitAtOnce is set. It returns the executable
// and the args file the caller should export as ArgsEnv.
func FakeInterpreter(t *testing.T, exitAtOnce bool) (exe, argsFile string) {
	t.Helper()
	SkipIfWindows(t)

	dir := t.TempDir()
	argsFile = filepath.Join(dir, "args")
	body := "#!/bin/sh\necho \"$@\" > \"$" + ArgsEnv + "\"\n"
	if exitAtOnce {
		body += "exit 0\n"
	} else {
		body += "exec sleep 30\n"
	}
	exe = filepath.Join(dir, "python3")
	if err := os.WriteFile(exe, []byte(body), 0755); err != nil {
		t.Fatalf("failed to write fake interpreter: %v", err)
	}
	return exe, argsFile
}

// ReadArgs returns what a fake interpreter recorded, or "" if it has not run.
func ReadArgs(t *testing.T, argsFile string) string {
	t.Helper()
	data, err := os.ReadFile(argsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read args file: %v", err)
	}
	return string(data)
}

// AcceptAllPorts is a port prober that reports every port as free.
func AcceptAllPorts(string, int) error {
	return nil
}

// SessionRecord returns a valid record for a lab server with session id pid
// listening on port.
func SessionRecord(pid, port int) session.Record {
	id := strconv.Itoa(pid)
	return session.Record{
		SessionID:  id,
		BaseURL:    "http://localhost:" + strconv.Itoa(port) + "/",
		Token:      "token-" + id,
		Label:      "Jupyter lab on port " + strconv.Itoa(port),
		AuthHeader: map[string]string{"Authorization": "token token-" + id},
		Kind:       "lab",
		Directory:  os.TempDir(),
	}
}

// SkipIfWindows skips tests that rely on POSIX shells and signals.
func SkipIfWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}
