package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/mintforge/internal/middleware/realip"
)

func testHandler(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	handler := Middleware(newLogger(&buf))(testHandler(http.StatusOK, "hello"))

	req := httptest.NewRequest("GET", "/api/mints", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, "hello", rr.Body.String())

	entry := decode(t, &buf)
	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/mints", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])
	assert.Contains(t, entry, "duration")
}

func TestMiddleware_Levels(t *testing.T) {
	tests := []struct {
		path   string
		status int
		level  string
	}{
		{"/api/mint", http.StatusOK, "INFO"},
		{"/api/mint", http.StatusBadRequest, "WARN"},
		{"/api/mint", http.StatusInternalServerError, "ERROR"},
		{"/healthz", http.StatusOK, "DEBUG"},
		{"/metrics", http.StatusOK, "DEBUG"},
		{"/readyz", http.StatusServiceUnavailable, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		handler := Middleware(newLogger(&buf))(testHandler(tt.status, ""))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", tt.path, nil))
		assert.Equal(t, tt.level, decode(t, &buf)["level"], "%s %d", tt.path, tt.status)
	}
}

func TestMiddleware_ImplicitStatus(t *testing.T) {
	var buf bytes.Buffer
	handler := Middleware(newLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, float64(http.StatusOK), decode(t, &buf)["status"])
}

func TestMiddleware_RoutePatternAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Middleware(newLogger(&buf)))
	r.Get("/api/mints/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/mints/0b7c", nil))

	entry := decode(t, &buf)
	assert.Equal(t, "/api/mints/{id}", entry["route"])
	assert.NotEmpty(t, entry["request_id"])
}

func TestMiddleware_UsesRealIP(t *testing.T) {
	var buf bytes.Buffer
	handler := realip.Middleware(realip.Config{
		TrustProxy:     true,
		TrustedProxies: []string{"10.0.0.0/8"},
	})(Middleware(newLogger(&buf))(testHandler(http.StatusOK, "")))

	req := httptest.NewRequest("POST", "/api/mint", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.50", decode(t, &buf)["client_ip"])
}
