package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zachkp/portfolio/internal/admin"
	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/inbox"
)

type fakeHasher struct{}

func (fakeHasher) HashIP(string) string { return "anon" }

func testConfig() *config.Config {
	return &config.Config{
		Port:          "0",
		GinMode:       gin.TestMode,
		NotifyTimeout: time.Second,
	}
}

func newServer(t *testing.T, cfg *config.Config, n contact.Notifier, logger *zap.Logger, a *admin.Admin) *Server {
	t.Helper()
	svc := contact.NewService(n, logger)
	return New(cfg, Deps{
		Contact: contact.NewHandler(svc, fakeHasher{}, logger),
		Admin:   a,
		Hasher:  fakeHasher{},
		Logger:  logger,
	})
}

func okNotifier() contact.Notifier {
	return contact.NotifierFunc(func(context.Context, contact.Submission) error { return nil })
}

func TestHealthz(t *testing.T) {
	s := newServer(t, testConfig(), okNotifier(), zap.NewNop(), nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestContactRouteSetsRequestID(t *testing.T) {
	s := newServer(t, testConfig(), okNotifier(), zap.NewNop(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Jane","email":"jane@example.com","message":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/contact", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestAcceptedSubmissionLogsOneInfoEvent(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := newServer(t, testConfig(), okNotifier(), zap.New(core), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Jane","email":"jane@example.com","message":"Hi"}`))
	req.Header.Set("Content-Type", "application/json")
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "contact submission received", logs.All()[0].Message)
}

func TestRecoveryReturnsGenericBody(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	s := newServer(t, testConfig(), okNotifier(), zap.New(core), nil)
	s.router.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body contact.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, contact.MsgInternalError, body.Message)
	assert.Equal(t, "kaboom", body.Error)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestAdminRoutesOnlyWithInbox(t *testing.T) {
	s := newServer(t, testConfig(), okNotifier(), zap.NewNop(), nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	store, err := inbox.Open(context.Background(), inbox.DriverSQLite, filepath.Join(t.TempDir(), "inbox.db"))
	require.NoError(t, err)
	defer store.Close()
	a, err := admin.New(config.AdminConfig{Username: "owner", Password: "pw"}, store, fakeHasher{}, zap.NewNop(), admin.Options{})
	require.NoError(t, err)

	s = newServer(t, testConfig(), okNotifier(), zap.NewNop(), a)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStaticSite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>portfolio</h1>"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "app.css"), []byte("body{}"), 0o644))

	cfg := testConfig()
	cfg.StaticDir = dir
	s := newServer(t, cfg, okNotifier(), zap.NewNop(), nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "portfolio")

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/images/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(l.Addr().String())
	l.Close()

	cfg := testConfig()
	cfg.Port = port
	s := newServer(t, cfg, okNotifier(), zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + port + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
