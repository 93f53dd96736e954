package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/labkeeper/internal/metrics"
	"github.com/Iron-Ham/labkeeper/internal/provider"
	"github.com/Iron-Ham/labkeeper/internal/registry"
	"github.com/Iron-Ham/labkeeper/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server   *Server
	registry *registry.Registry
	disposed map[string]int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	reg := registry.New(nil)
	surface := provider.NewSurface(reg)
	handle := surface.RegisterProvider("labkeeper", "Local Jupyter")

	env := &testEnv{registry: reg, disposed: map[string]int{}}
	env.server = New(Options{
		Surface:  surface,
		Handle:   handle,
		Registry: reg,
		Metrics:  metrics.New(),
	})
	return env
}

func (e *testEnv) add(id string, token string) {
	rec := session.Record{
		SessionID: id,
		BaseURL:   "http://localhost:8888/",
		Token:     token,
		Label:     "Jupyter lab on port 8888",
		Kind:      "lab",
	}
	if token != "" {
		rec.AuthHeader = map[string]string{"Authorization": "token " + token}
	}
	e.registry.Add(rec, func() error {
		e.disposed[id]++
		return nil
	})
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "")

	w := env.do(http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestListProviders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/providers")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"labkeeper","label":"Local Jupyter"}]`, w.Body.String())
}

func TestListSessions_OmitsTokens(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "secret")
	env.add("11", "")

	w := env.do(http.MethodGet, "/api/sessions")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")

	var views []sessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "10", views[0].SessionID)
	assert.Equal(t, "lab", views[0].Kind)
}

func TestResolveSession(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "secret")

	w := env.do(http.MethodGet, "/api/sessions/10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"baseUrl": "http://localhost:8888/",
		"token": "secret",
		"authHeader": {"Authorization": "token secret"}
	}`, w.Body.String())

	w = env.do(http.MethodGet, "/api/sessions/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "session not found")
}

func TestRemoveSession(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "")

	w := env.do(http.MethodDelete, "/api/sessions/10")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, env.disposed["10"])
	assert.False(t, env.registry.Contains("10"))

	w = env.do(http.MethodDelete, "/api/sessions/10")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, env.disposed["10"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "")

	w := env.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "labkeeper_")
}

func TestSessionStream(t *testing.T) {
	env := newTestEnv(t)
	env.add("10", "")

	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() handlesMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var msg handlesMessage
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	first := read()
	assert.Equal(t, "handles", first.Type)
	assert.Equal(t, []string{"10"}, first.IDs)

	env.add("11", "")
	assert.Equal(t, []string{"10", "11"}, read().IDs)

	require.NoError(t, env.registry.Remove("10"))
	assert.Equal(t, []string{"11"}, read().IDs)
}
