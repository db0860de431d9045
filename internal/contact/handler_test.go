package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubHasher struct{}

func (stubHasher) HashIP(ip string) string { return "hashed" }

func newTestRouter(n Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(NewService(n, zap.NewNop()), stubHasher{}, zap.NewNop())
	r.Any("/api/contact", h.Submit)
	return r
}

func doJSON(r http.Handler, method, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/contact", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "response must be JSON: %s", w.Body.String())
	return body
}

func TestHandlerResponses(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"get", http.MethodGet, "", http.StatusMethodNotAllowed, MsgMethodNotAllowed},
		{"put", http.MethodPut, `{"name":"Jane","email":"jane@example.com","message":"Hi"}`, http.StatusMethodNotAllowed, MsgMethodNotAllowed},
		{"delete", http.MethodDelete, "", http.StatusMethodNotAllowed, MsgMethodNotAllowed},
		{"empty body", http.MethodPost, "", http.StatusBadRequest, MsgMissingFields},
		{"empty object", http.MethodPost, `{}`, http.StatusBadRequest, MsgMissingFields},
		{"empty name", http.MethodPost, `{"name":"","email":"jane@example.com","message":"Hi"}`, http.StatusBadRequest, MsgMissingFields},
		{"absent message", http.MethodPost, `{"name":"Jane","email":"jane@example.com"}`, http.StatusBadRequest, MsgMissingFields},
		{"no at", http.MethodPost, `{"name":"Jane","email":"jane.example.com","message":"Hi"}`, http.StatusBadRequest, MsgInvalidEmail},
		{"space near at", http.MethodPost, `{"name":"Jane","email":"jane @example.com","message":"Hi"}`, http.StatusBadRequest, MsgInvalidEmail},
		{"no tld", http.MethodPost, `{"name":"Jane","email":"jane@example","message":"Hi"}`, http.StatusBadRequest, MsgInvalidEmail},
		{"malformed json", http.MethodPost, `{"name":`, http.StatusBadRequest, MsgInvalidBody},
		{"wrong type", http.MethodPost, `{"name":5,"email":"jane@example.com","message":"Hi"}`, http.StatusBadRequest, MsgInvalidBody},
		{"ok", http.MethodPost, `{"name":"Jane Doe","email":"jane@example.com","message":"Hello"}`, http.StatusOK, MsgReceived},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			w := doJSON(newTestRouter(n), tt.method, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.wantMsg, body["message"])
			assert.NotContains(t, body, "error")

			if tt.wantStatus == http.StatusOK {
				assert.Len(t, n.calls, 1)
			} else {
				assert.Empty(t, n.calls)
			}
			if tt.wantStatus == http.StatusMethodNotAllowed {
				assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
			}
		})
	}
}

func TestHandlerAcceptsFormPost(t *testing.T) {
	n := &recordingNotifier{}
	r := newTestRouter(n)

	form := url.Values{"name": {"Jane"}, "email": {"jane@example.com"}, "message": {"From HTMX"}}
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.calls, 1)
	assert.Equal(t, "From HTMX", n.calls[0].Message)
	assert.Equal(t, "hashed", n.calls[0].Source.ClientIP)
}

func TestHandlerDeliveryFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("resend: unexpected status 500")}
	w := doJSON(newTestRouter(n), http.MethodPost, `{"name":"Jane","email":"jane@example.com","message":"Hi"}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.Equal(t, MsgDeliveryFailed, body["message"])
	assert.Contains(t, body["error"], "unexpected status 500")
}

func TestHandlerNotifierPanicReturnsGenericError(t *testing.T) {
	boom := NotifierFunc(func(context.Context, Submission) error { panic("boom") })
	w := doJSON(newTestRouter(boom), http.MethodPost, `{"name":"Jane","email":"jane@example.com","message":"Hi"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, MsgInternalError, body["message"])
	assert.Contains(t, body["error"], "boom")
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	n := &recordingNotifier{}
	big := strings.Repeat("a", MaxBodyBytes+1)
	w := doJSON(newTestRouter(n), http.MethodPost, `{"name":"Jane","email":"jane@example.com","message":"`+big+`"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgInvalidBody, decode(t, w)["message"])
	assert.Empty(t, n.calls)

	form := url.Values{"name": {"Jane"}, "email": {"jane@example.com"}, "message": {big}}
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	newTestRouter(n).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, MsgInvalidBody, decode(t, w)["message"])
	assert.Empty(t, n.calls)
}

func TestHandlerAcceptsBodyAtLimit(t *testing.T) {
	n := &recordingNotifier{}
	prefix := `{"name":"Jane","email":"jane@example.com","message":"`
	msg := strings.Repeat("a", MaxBodyBytes-len(prefix)-len(`"}`))
	w := doJSON(newTestRouter(n), http.MethodPost, prefix+msg+`"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, n.calls, 1)
	assert.Len(t, n.calls[0].Message, len(msg))
}

func TestHandlerNeverEchoesInput(t *testing.T) {
	payloads := []string{
		`{"name":"<script>alert(1)</script>","email":"jane@example.com","message":"<b>hi</b>"}`,
		`{"name":"<script>alert(1)</script>","email":"<img src=x>","message":"<b>hi</b>"}`,
		`{"name":"","email":"<img src=x>","message":"<b>hi</b>"}`,
	}
	for _, p := range payloads {
		w := doJSON(newTestRouter(&recordingNotifier{}), http.MethodPost, p)
		assert.NotContains(t, w.Body.String(), "script")
		assert.NotContains(t, w.Body.String(), "img")
		assert.NotContains(t, w.Body.String(), "<b>")
		decode(t, w)
	}
}

func TestHandlerDuplicateSubmissionsAreIndependent(t *testing.T) {
	n := &recordingNotifier{}
	r := newTestRouter(n)
	body := `{"name":"Jane","email":"jane@example.com","message":"Hi"}`

	first := doJSON(r, http.MethodPost, body)
	second := doJSON(r, http.MethodPost, body)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Len(t, n.calls, 2)
}

func TestHandlerHonorsCanceledRequest(t *testing.T) {
	blocking := NotifierFunc(func(ctx context.Context, _ Submission) error {
		<-ctx.Done()
		return ctx.Err()
	})
	r := newTestRouter(blocking)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/contact",
		strings.NewReader(`{"name":"Jane","email":"jane@example.com","message":"Hi"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, MsgDeliveryFailed, decode(t, w)["message"])
}
