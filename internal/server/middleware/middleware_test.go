package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"scribeq/internal/logger"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = logger.RequestIDFromContext(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Error("request id not attached to context")
	}
	if rr.Header().Get("X-Request-ID") != captured {
		t.Errorf("header %q does not match context id %q", rr.Header().Get("X-Request-ID"), captured)
	}
}

func TestRequestID_ReusesIncomingHeader(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = logger.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-chosen-id")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if captured != "client-chosen-id" {
		t.Errorf("got %q, want incoming header reused", captured)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	mw := SubmitRateLimit(1, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	// First request uses the burst.
	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, httptest.NewRequest(http.MethodPost, "/jobs", nil))
	if rr1.Code != http.StatusAccepted {
		t.Errorf("first request: got status %d, want %d", rr1.Code, http.StatusAccepted)
	}

	// Second request is throttled.
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, httptest.NewRequest(http.MethodPost, "/jobs", nil))
	if rr2.Code != http.StatusTooManyRequests {
		t.Errorf("second request: got status %d, want %d", rr2.Code, http.StatusTooManyRequests)
	}
	if rr2.Header().Get("Retry-After") != "1" {
		t.Errorf("got Retry-After %q, want %q", rr2.Header().Get("Retry-After"), "1")
	}
}
