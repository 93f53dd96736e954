// Package session persists launched server sessions and reconciles them
// against the live process inventory when labkeeper starts.
//
// The store is an append-only JSON array. Entries are never pruned in place:
// records whose process has died are filtered out at load time, and a
// malformed entry is skipped rather than failing the whole load.
package session

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Record is the durable description of one session. SessionID is the server
// process id in decimal.
type Record struct {
	SessionID       string            `json:"sessionId" yaml:"sessionId"`
	BaseURL         string            `json:"baseUrl" yaml:"baseUrl"`
	Token           string            `json:"token" yaml:"token"`
	Label           string            `json:"label" yaml:"label"`
	MappedDirectory string            `json:"mappedDirectory,omitempty" yaml:"mappedDirectory,omitempty"`
	AuthHeader      map[string]string `json:"authHeader,omitempty" yaml:"authHeader,omitempty"`
	Kind            string            `json:"kind,omitempty" yaml:"kind,omitempty"`
	Directory       string            `json:"directory,omitempty" yaml:"directory,omitempty"`
	LaunchedAt      time.Time         `json:"launchedAt,omitzero" yaml:"launchedAt,omitempty"`
}

// PID parses SessionID.
func (r Record) PID() (int, error) {
	pid, err := strconv.Atoi(r.SessionID)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("session id %q is not a process id", r.SessionID)
	}
	return pid, nil
}

// Port returns the port in BaseURL, or 0 if it has none.
func (r Record) Port() int {
	u, err := url.Parse(r.BaseURL)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(u.Port())
	return port
}

// Validate checks the fields reconciliation depends on.
func (r Record) Validate() error {
	if _, err := r.PID(); err != nil {
		return err
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("session %s has invalid base url %q", r.SessionID, r.BaseURL)
	}
	return nil
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	if r.AuthHeader != nil {
		h := make(map[string]string, len(r.AuthHeader))
		for k, v := range r.AuthHeader {
			h[k] = v
		}
		r.AuthHeader = h
	}
	return r
}
