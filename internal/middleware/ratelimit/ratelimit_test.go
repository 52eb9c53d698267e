package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_AllowsBurstThenRejects(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 3})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("fourth request should be limited")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients have their own bucket")
	}
	if rl.Hits() != 1 || rl.ActiveClients() != 2 {
		t.Fatalf("hits=%d clients=%d", rl.Hits(), rl.ActiveClients())
	}
}

func TestLimiter_CleanupDropsIdleClients(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 5})
	defer rl.Stop()

	rl.Allow("1.1.1.1")
	rl.cleanupStaleEntries(time.Now())
	if rl.ActiveClients() != 1 {
		t.Fatal("fresh client should survive cleanup")
	}
	rl.cleanupStaleEntries(time.Now().Add(11 * time.Minute))
	if rl.ActiveClients() != 0 {
		t.Fatal("idle client should be dropped")
	}
}

func TestLimiter_MiddlewareOnlyLimitsMutations(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	h := rl.Middleware(func(*http.Request) string { return "9.9.9.9" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		method string
		want   int
	}{
		{http.MethodPost, http.StatusNoContent},
		{http.MethodPost, http.StatusTooManyRequests},
		{http.MethodGet, http.StatusNoContent},
		{http.MethodDelete, http.StatusTooManyRequests},
	}
	for i, tc := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, "/api/transactions", nil))
		if rec.Code != tc.want {
			t.Errorf("request %d (%s): got %d, want %d", i, tc.method, rec.Code, tc.want)
		}
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") != "60" {
			t.Errorf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
		}
	}
}

func TestNewLimiter_Defaults(t *testing.T) {
	rl := NewLimiter(Config{})
	defer rl.Stop()
	rl.Stop()
	if rl.burst != 60 || rl.cleanupInterval != 5*time.Minute {
		t.Fatalf("unexpected defaults burst=%d interval=%v", rl.burst, rl.cleanupInterval)
	}
}
