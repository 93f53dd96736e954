package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/labkeeper/internal/errors"
)

// =============================================================================
// Test Helpers
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "sessions.json"), nil)
}

func newRecord(pid, port int) Record {
	return Record{
		SessionID:  strconv.Itoa(pid),
		BaseURL:    "http://localhost:" + strconv.Itoa(port) + "/",
		Token:      "tok-" + strconv.Itoa(pid),
		Label:      "Notebook on port " + strconv.Itoa(port),
		AuthHeader: map[string]string{"Authorization": "token tok-" + strconv.Itoa(pid)},
	}
}

func writeRawStore(t *testing.T, s *Store, content string) {
	t.Helper()
	if err := os.WriteFile(s.Path(), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write store: %v", err)
	}
}

// =============================================================================
// Record Tests
// =============================================================================

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
	}{
		{"valid", newRecord(100, 8888), false},
		{"non-numeric id", Record{SessionID: "abc", BaseURL: "http://localhost:8888/"}, true},
		{"zero pid", Record{SessionID: "0", BaseURL: "http://localhost:8888/"}, true},
		{"missing scheme", Record{SessionID: "12", BaseURL: "localhost:8888"}, true},
		{"empty url", Record{SessionID: "12"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecord_Port(t *testing.T) {
	if got := newRecord(1, 8890).Port(); got != 8890 {
		t.Errorf("Port() = %d, want 8890", got)
	}
	if got := (Record{BaseURL: "http://localhost/"}).Port(); got != 0 {
		t.Errorf("Port() without port = %d, want 0", got)
	}
}

func TestRecord_Clone(t *testing.T) {
	rec := newRecord(5, 8888)
	clone := rec.Clone()
	clone.AuthHeader["Authorization"] = "changed"

	if rec.AuthHeader["Authorization"] == "changed" {
		t.Error("Clone() should not share the auth header map")
	}
}

func TestRecord_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(Record{SessionID: "7", BaseURL: "http://localhost:8888/", Token: "", Label: "x"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	for _, key := range []string{"sessionId", "baseUrl", "token", "label"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing field %q in %s", key, data)
		}
	}
	for _, key := range []string{"authHeader", "mappedDirectory", "launchedAt"} {
		if _, ok := fields[key]; ok {
			t.Errorf("unexpected empty field %q in %s", key, data)
		}
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	records, skipped, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 0 || skipped != 0 {
		t.Errorf("Load() = %d records, %d skipped; want empty", len(records), skipped)
	}
}

func TestStore_PersistAppends(t *testing.T) {
	s := newTestStore(t)

	first := newRecord(101, 8888)
	second := newRecord(102, 8889)
	if err := s.Persist(first); err != nil {
		t.Fatalf("Persist(first) error = %v", err)
	}
	if err := s.Persist(second); err != nil {
		t.Fatalf("Persist(second) error = %v", err)
	}

	records, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Load() returned %d records, want 2", len(records))
	}
	if records[0].SessionID != "101" || records[1].SessionID != "102" {
		t.Errorf("records out of order: %s, %s", records[0].SessionID, records[1].SessionID)
	}
	if records[1].AuthHeader["Authorization"] != "token tok-102" {
		t.Errorf("auth header = %v", records[1].AuthHeader)
	}

	if _, err := os.Stat(s.lockPath()); !os.IsNotExist(err) {
		t.Error("lock file should be released after Persist")
	}
}

func TestStore_PersistKeepsUnparseableEntries(t *testing.T) {
	s := newTestStore(t)
	writeRawStore(t, s, `[{"sessionId": 42}, "garbage"]`)

	if err := s.Persist(newRecord(103, 8888)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("store is not a JSON array: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("store has %d entries, want 3", len(entries))
	}
}

func TestStore_LoadSkipsMalformed(t *testing.T) {
	s := newTestStore(t)
	writeRawStore(t, s, `[
		{"sessionId": "200", "baseUrl": "http://localhost:8888/", "token": "a", "label": "ok"},
		{"sessionId": 201},
		{"sessionId": "not-a-pid", "baseUrl": "http://localhost:8889/", "token": "", "label": ""},
		{"sessionId": "202", "baseUrl": "", "token": "", "label": ""}
	]`)

	records, skipped, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 1 || records[0].SessionID != "200" {
		t.Errorf("Load() records = %+v, want only session 200", records)
	}
	if skipped != 3 {
		t.Errorf("skipped = %d, want 3", skipped)
	}
}

func TestStore_CorruptFile(t *testing.T) {
	s := newTestStore(t)
	writeRawStore(t, s, `{"not": "an array"}`)

	_, _, err := s.Load()
	if !errors.Is(err, errors.ErrSessionCorrupted) {
		t.Fatalf("Load() error = %v, want ErrSessionCorrupted", err)
	}

	if err := s.Persist(newRecord(300, 8888)); err != nil {
		t.Fatalf("Persist() over corrupt store error = %v", err)
	}
	records, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load() after recovery error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Load() returned %d records, want 1", len(records))
	}

	matches, _ := filepath.Glob(s.Path() + ".corrupt-*")
	if len(matches) != 1 {
		t.Errorf("expected corrupt store to be moved aside, found %v", matches)
	}
}

func TestStore_ConcurrentPersist(t *testing.T) {
	s := newTestStore(t)

	const n = 10
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Persist(newRecord(1000+i, 9000+i)); err != nil {
				t.Errorf("Persist(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	records, _, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != n {
		t.Errorf("Load() returned %d records, want %d", len(records), n)
	}
}

// =============================================================================
// Reconcile Tests
// =============================================================================

func TestLoadAndReconcile(t *testing.T) {
	s := newTestStore(t)
	for _, rec := range []Record{newRecord(11, 8888), newRecord(12, 8889), newRecord(13, 8890)} {
		if err := s.Persist(rec); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
	}

	inv := NewStaticInventory(11, 13)
	registered := func(id string) bool { return id == "13" }

	result, err := s.LoadAndReconcile(inv, registered)
	if err != nil {
		t.Fatalf("LoadAndReconcile() error = %v", err)
	}

	if len(result.Restored) != 1 || result.Restored[0].SessionID != "11" {
		t.Errorf("Restored = %+v, want only session 11", result.Restored)
	}
	if len(result.Stale) != 1 || result.Stale[0] != "12" {
		t.Errorf("Stale = %v, want [12]", result.Stale)
	}
	if len(result.AlreadyRegistered) != 1 || result.AlreadyRegistered[0] != "13" {
		t.Errorf("AlreadyRegistered = %v, want [13]", result.AlreadyRegistered)
	}
}

func TestLoadAndReconcile_DeadProcessYieldsNothing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Persist(newRecord(21, 8888)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	result, err := s.LoadAndReconcile(NewStaticInventory(), nil)
	if err != nil {
		t.Fatalf("LoadAndReconcile() error = %v", err)
	}
	if len(result.Restored) != 0 {
		t.Errorf("Restored = %+v, want none", result.Restored)
	}
}

func TestLoadAndReconcile_LatestEntryWins(t *testing.T) {
	s := newTestStore(t)
	older := newRecord(31, 8888)
	newer := newRecord(31, 8899)
	newer.Token = "rotated"
	for _, rec := range []Record{older, newRecord(32, 8890), newer} {
		if err := s.Persist(rec); err != nil {
			t.Fatalf("Persist() error = %v", err)
		}
	}

	result, err := s.LoadAndReconcile(NewStaticInventory(31, 32), nil)
	if err != nil {
		t.Fatalf("LoadAndReconcile() error = %v", err)
	}
	if len(result.Restored) != 2 {
		t.Fatalf("Restored = %d records, want 2", len(result.Restored))
	}
	for _, rec := range result.Restored {
		if rec.SessionID == "31" && rec.Token != "rotated" {
			t.Errorf("session 31 token = %q, want the latest entry", rec.Token)
		}
	}
}

func TestLoadAndReconcile_CorruptStoreIsInformational(t *testing.T) {
	s := newTestStore(t)
	writeRawStore(t, s, "not json")

	result, err := s.LoadAndReconcile(OSInventory{}, nil)
	if err == nil {
		t.Error("expected an error for a corrupt store")
	}
	if len(result.Restored) != 0 {
		t.Errorf("Restored = %+v, want none", result.Restored)
	}
}

func TestOSInventory(t *testing.T) {
	inv := OSInventory{}
	if !inv.Contains(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if inv.Contains(0) || inv.Contains(-1) {
		t.Error("non-positive pids are never alive")
	}
}

// =============================================================================
// Watch Tests
// =============================================================================

func TestWatchStore(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	errCh := make(chan error, 1)
	go func() {
		errCh <- WatchStore(ctx, s.Path(), func() { changed <- struct{}{} })
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)

	if err := s.Persist(newRecord(41, 8888)); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("WatchStore() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WatchStore did not return after cancel")
	}
}
