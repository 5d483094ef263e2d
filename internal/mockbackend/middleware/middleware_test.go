package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/apismoke/internal/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func preflight(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodOptions, "/api/", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set(HeaderRequestMethod, "GET")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type,Authorization")
	return req
}

func TestCORS_Preflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS()(okHandler()).ServeHTTP(rec, preflight("http://localhost:3000"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(HeaderAllowOrigin))
	assert.Equal(t, "true", rec.Header().Get(HeaderAllowCredentials))
	assert.Contains(t, rec.Header().Get(HeaderAllowMethods), "GET")
	assert.Contains(t, rec.Header().Get(HeaderAllowHeaders), "Authorization")
	assert.Equal(t, "600", rec.Header().Get(HeaderMaxAge))
	assert.Empty(t, rec.Body.String())
}

func TestCORS_WildcardWithoutCredentials(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowCredentials = false

	rec := httptest.NewRecorder()
	CORSWithConfig(cfg)(okHandler()).ServeHTTP(rec, preflight("http://localhost:3000"))

	assert.Equal(t, "*", rec.Header().Get(HeaderAllowOrigin))
	assert.Empty(t, rec.Header().Get(HeaderAllowCredentials))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://admin.example.com"}

	rec := httptest.NewRecorder()
	CORSWithConfig(cfg)(okHandler()).ServeHTTP(rec, preflight("http://evil.example.com"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderAllowOrigin))
	assert.Empty(t, rec.Header().Get(HeaderAllowMethods))
	assert.Empty(t, rec.Header().Get(HeaderAllowHeaders))
	assert.Empty(t, rec.Header().Get(HeaderAllowCredentials))
}

func TestCORS_SimpleRequestPassesThrough(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	CORS()(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get(HeaderAllowOrigin))
	assert.Equal(t, RequestIDHeader, rec.Header().Get(HeaderExposeHeaders))
}

func TestCORS_PlainOptionsReachesHandler(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	rec := httptest.NewRecorder()
	CORS()(next).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestID(t *testing.T) {
	t.Run("generates an id", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = observability.RequestIDFromContext(r.Context())
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})

	t.Run("reuses the incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "req-1")
		rec := httptest.NewRecorder()

		RequestID(okHandler()).ServeHTTP(rec, req)

		assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestID(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "handler exploded")
	assert.Contains(t, buf.String(), `"request_id"`)
}

func TestRequestLogger(t *testing.T) {
	statusHandler := func(code int) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
	}

	tests := []struct {
		name    string
		verbose bool
		status  int
		wantLog bool
		level   string
	}{
		{"quiet skips success", false, http.StatusOK, false, ""},
		{"quiet logs client error", false, http.StatusUnauthorized, true, "WARN"},
		{"quiet logs server error", false, http.StatusInternalServerError, true, "ERROR"},
		{"verbose logs success", true, http.StatusOK, true, "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			rec := httptest.NewRecorder()
			RequestLogger(logger, tt.verbose)(statusHandler(tt.status)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil))

			assert.Equal(t, tt.status, rec.Code)
			if !tt.wantLog {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), `"path":"/api/admin/settings"`)
			assert.Contains(t, buf.String(), `"level":"`+tt.level+`"`)
		})
	}
}

func TestCompress_Brotli(t *testing.T) {
	body := strings.Repeat(`{"telegram_bot_token":"x"}`, 50)
	h := Compress(DefaultCompressionLevel)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "br", rec.Header().Get("Content-Encoding"))
	decoded, err := io.ReadAll(brotli.NewReader(rec.Body))
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))
}

func TestCompress_Identity(t *testing.T) {
	h := Compress(DefaultCompressionLevel)(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/", nil))

	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"ok":true}`, rec.Body.String())
}
