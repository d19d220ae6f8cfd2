package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/go-chi/chi/v5"
)

// TestMiddlewareChain_FullStack はルーター全体のミドルウェア構成で
// 認証済みリクエストのログ・メトリクス・ヘッダーが揃うことを検証する。
func TestMiddlewareChain_FullStack(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	collector := &recordingCollector{}
	rl := NewRateLimiter(RateLimiterConfig{Window: time.Minute, GeneralMax: 10, AuthMax: 10}, collector)
	defer rl.Stop()

	p := &model.Principal{ID: testUserID, Role: model.RoleUser}

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(logger))
	r.Use(NewMetricsMiddleware(collector))
	r.Use(NewSecurityHeadersMiddleware())
	r.Use(NewCORSMiddleware([]string{"http://localhost:3000"}))
	r.Use(rl.GeneralMiddleware())
	r.With(NewAuthMiddleware(acceptToken("good", p), collector)).Get("/weight-entries/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/weight-entries/abc", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Error("CORS header missing")
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(logBuf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log: %v\nraw: %s", err, logBuf.String())
	}
	if entry["user_id"] != testUserID.String() {
		t.Errorf("user_id = %v, want %s", entry["user_id"], testUserID)
	}

	if len(collector.requests) != 1 || collector.requests[0] != "GET /weight-entries/{id} 200" {
		t.Errorf("request metrics = %v", collector.requests)
	}
}

// TestMiddlewareChain_NoToken_Returns401 はトークンなしのリクエストが認証で止まることを検証する。
func TestMiddlewareChain_NoToken_Returns401(t *testing.T) {
	collector := &recordingCollector{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(collector))
	r.With(NewAuthMiddleware(&mockAuthenticator{}, collector)).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/auth/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if len(collector.authFailures) != 1 || collector.authFailures[0] != model.ErrCodeNoToken {
		t.Errorf("auth failures = %v", collector.authFailures)
	}
}

// TestMetricsMiddleware_UnmatchedRoute はルート外のリクエストを固定ラベルで記録することを検証する。
func TestMetricsMiddleware_UnmatchedRoute(t *testing.T) {
	collector := &recordingCollector{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(collector))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/no/such/path", nil))

	if len(collector.requests) != 1 || collector.requests[0] != "GET unmatched 404" {
		t.Errorf("request metrics = %v", collector.requests)
	}
}

// TestRecoveryMiddleware_PanicReturnsEnvelope はpanicが500のエンベロープに変換されることを検証する。
func TestRecoveryMiddleware_PanicReturnsEnvelope(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeInternal {
		t.Errorf("error = %q", code)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	NewSecurityHeadersMiddleware()(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}
