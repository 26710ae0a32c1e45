package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/neurocare-backend/pkg/logger"
)

func TestSessionEchoesHeader(t *testing.T) {
	var seen string
	h := Session(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionIDHeader, "tab-7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "tab-7", seen)
	assert.Equal(t, "tab-7", w.Header().Get(SessionIDHeader))
}

func TestSessionMintsMissingID(t *testing.T) {
	var seen string
	h := Session(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionIDFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(SessionIDHeader))
}

func TestSessionRejectsInvalidID(t *testing.T) {
	called := false
	h := Session(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionIDHeader, "neurocare:other:cart")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecovererWritesInternalError(t *testing.T) {
	h := Recoverer(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

func TestRequestIDAndLogging(t *testing.T) {
	h := RequestID(logger.Nop())(Logging(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(requestIDHeader))
}

func TestRequestIDReplacesMalformedInboundID(t *testing.T) {
	h := RequestID(logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, bad := range []string{"", "has spaces", strings.Repeat("x", 65), "line\nbreak"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, bad)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		got := w.Header().Get(requestIDHeader)
		assert.NotEqual(t, bad, got)
		_, err := uuid.Parse(got)
		assert.NoError(t, err, "minted id for %q", bad)
	}
}

func TestLoggingRecordsResolvedSession(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf, Format: "json"})
	h := Logging(logg)(Session(logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/session", nil)
	req.Header.Set(SessionIDHeader, "tab-9")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var complete string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.Contains(line, "request.complete") {
			complete = line
		}
	}
	require.NotEmpty(t, complete)
	assert.Contains(t, complete, `"session_id":"tab-9"`)
	assert.Contains(t, complete, `"status":204`)
}

func TestCORSPreflightAllowsSessionHeader(t *testing.T) {
	called := false
	h := CORS([]string{"https://care.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/cart", nil)
	req.Header.Set("Origin", "https://care.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,x-session-id,idempotency-key")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, "https://care.example", w.Header().Get("Access-Control-Allow-Origin"))
	allowed := strings.ToLower(w.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, "x-session-id")
	assert.Contains(t, allowed, "idempotency-key")
}

func TestCORSExposesSessionHeaderAndRejectsUnknownOrigin(t *testing.T) {
	h := CORS([]string{"https://care.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(SessionIDHeader, "tab")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Origin", "https://care.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Expose-Headers")), "x-session-id")

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
