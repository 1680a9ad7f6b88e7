// Package ratelimit throttles clients by IP with a fixed one minute window.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	window     = time.Minute
	staleAfter = 10 * time.Minute
)

// Limiter counts requests per client IP. A window opens with the client's
// first request and lasts one minute.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*client
	now     func() time.Time
	hits    atomic.Int64

	perWindow int
	sweep     time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
}

type client struct {
	opened time.Time
	seen   time.Time
	count  int
}

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60, CleanupInterval: 5 * time.Minute}
}

// NewLimiter starts a sweeper goroutine that forgets idle clients. Stop ends
// it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	rl := &Limiter{
		clients:   make(map[string]*client),
		now:       time.Now,
		perWindow: config.RequestsPerMinute,
		sweep:     config.CleanupInterval,
		stop:      make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Allow records a request from ip. When the window is full it returns false
// and how long until the window resets.
func (rl *Limiter) Allow(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	c, ok := rl.clients[ip]
	if !ok || now.Sub(c.opened) >= window {
		if !ok {
			c = &client{}
			rl.clients[ip] = c
		}
		c.opened, c.count = now, 0
	}
	c.seen = now
	c.count++
	if c.count > rl.perWindow {
		rl.hits.Add(1)
		return false, c.opened.Add(window).Sub(now)
	}
	return true, 0
}

func (rl *Limiter) sweepLoop() {
	ticker := time.NewTicker(rl.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetIdle()
		case <-rl.stop:
			return
		}
	}
}

// forgetIdle drops clients silent for longer than staleAfter.
func (rl *Limiter) forgetIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-staleAfter)
	removed := 0
	for ip, c := range rl.clients {
		if c.seen.Before(cutoff) {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{TotalHits: rl.hits.Load(), ClientCount: int64(rl.ActiveClients())}
}

// MutatingOnly limits only requests that can change state.
func MutatingOnly(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// RetryAfter renders d as whole seconds for the Retry-After header, at
// least one.
func RetryAfter(d time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(d.Seconds()))))
}

// Middleware limits the requests for which applies is true (all of them
// when applies is nil). onLimit writes the rejection; nil sends a plain 429.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, applies func(*http.Request) bool,
	onLimit func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if applies != nil && !applies(r) {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Allow(extractIP(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			if onLimit != nil {
				onLimit(w, r, wait)
				return
			}
			w.Header().Set("Retry-After", RetryAfter(wait))
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
