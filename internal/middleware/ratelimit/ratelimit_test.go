package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute})
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestAllowWindow(t *testing.T) {
	rl, c := newTestLimiter(t, 3)
	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("1.2.3.4"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	c.t = c.t.Add(20 * time.Second)
	ok, wait := rl.Allow("1.2.3.4")
	if ok {
		t.Fatalf("fourth request should be limited")
	}
	if wait != 40*time.Second {
		t.Fatalf("retry after = %v, want 40s", wait)
	}
	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Fatalf("other clients are not affected")
	}
	// A client that keeps hammering still gets a fresh window.
	c.t = c.t.Add(41 * time.Second)
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatalf("new window should pass")
	}
	if got := rl.GetMetrics(); got.TotalHits != 1 || got.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", got)
	}
}

func TestForgetIdleClients(t *testing.T) {
	rl, c := newTestLimiter(t, 10)
	rl.Allow("a")
	c.t = c.t.Add(11 * time.Minute)
	rl.Allow("b")
	if removed := rl.forgetIdle(); removed != 1 {
		t.Fatalf("expected one idle client removed, got %d", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected one active client")
	}
}

func TestRetryAfter(t *testing.T) {
	cases := map[time.Duration]string{
		0:                        "1",
		300 * time.Millisecond:   "1",
		40 * time.Second:         "40",
		59500 * time.Millisecond: "60",
	}
	for in, want := range cases {
		if got := RetryAfter(in); got != want {
			t.Fatalf("RetryAfter(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareOnlyLimitsMutatingRequests(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, MutatingOnly, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/budget/save", nil))
		return rr
	}

	if rr := do(http.MethodPost); rr.Code != http.StatusNoContent {
		t.Fatalf("first POST = %d", rr.Code)
	}
	rr := do(http.MethodPost)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}
	for i := 0; i < 5; i++ {
		if rr := do(http.MethodGet); rr.Code != http.StatusNoContent {
			t.Fatalf("GET should never be limited, got %d", rr.Code)
		}
	}
}
