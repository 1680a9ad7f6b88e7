package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"bilancio/internal/budget"
	"bilancio/internal/format"
	"bilancio/internal/log"
	"bilancio/internal/middleware/ratelimit"
	"bilancio/internal/middleware/security"
	"bilancio/internal/middleware/trace"
	"bilancio/internal/ports"
	appweb "bilancio/web"
)

// Deps are the collaborators the server needs. Manager and Directory are
// required.
type Deps struct {
	Manager   *budget.Manager
	Directory ports.CategoryDirectory
	// Ready reports whether the backend can serve requests; nil means always.
	Ready         func(ctx context.Context) error
	Formatter     format.Formatter
	DefaultUserID string
	Logger        *log.Logger
	// RateLimitPerMinute bounds mutating requests per client IP.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	templates *template.Template
	manager   *budget.Manager
	directory ports.CategoryDirectory
	ready     func(ctx context.Context) error
	money     format.Formatter
	userID    string
	logger    *log.Logger
	errors    *log.StructuredLogger

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	startedAt   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Manager == nil || deps.Directory == nil {
		return nil, errors.New("http server needs a session manager and a category directory")
	}
	if deps.Logger == nil {
		deps.Logger = log.Discard()
	}
	if deps.DefaultUserID == "" {
		return nil, errors.New("http server needs a default user id")
	}
	logger := deps.Logger.WithComponent(log.ComponentHTTP)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.Templates(), "*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector()
	s := &Server{
		templates: t,
		manager:   deps.Manager,
		directory: deps.Directory,
		ready:     deps.Ready,
		money:     deps.Formatter,
		userID:    deps.DefaultUserID,
		logger:    logger,
		errors:    log.NewStructuredLogger(logger),
		detector:  detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
		tracer:    trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(appweb.Static())))))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/budget", http.StatusFound)
	})
	mux.HandleFunc("GET /budget", s.handleBudgetPage)
	mux.HandleFunc("POST /budget/items/{id}/amount", s.handleSetAmount)
	mux.HandleFunc("POST /budget/items/{id}/paid", s.handleSetPaid)
	mux.HandleFunc("POST /budget/save", s.handleSave)
	mux.HandleFunc("GET /ui/budget-summary", s.handleSummaryPartial)
	mux.HandleFunc("GET /api/budget", s.handleBudgetAPI)

	mux.HandleFunc("GET /categories", s.handleCategoriesPage)
	mux.HandleFunc("POST /categories", s.handleCreateCategory)
	mux.HandleFunc("POST /categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("POST /categories/{id}/delete", s.handleDeleteCategory)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, ratelimit.MutatingOnly, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware(deps.Logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").
		Header("Retry-After", ratelimit.RetryAfter(retryAfter)).
		TriggerErrorNotification("Too many requests. Please try again later.").
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// userIDFor is the X-Forwarded-User of a trusted proxy, or the default user.
func (s *Server) userIDFor(r *http.Request) string {
	if user := s.detector.ForwardedUser(r); user != "" {
		return user
	}
	return s.userID
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.errors.LogError(r.Context(), "Template execution failed", err, log.ComponentTemplate, log.OpRender,
			log.NewFields().WithRequestID(requestID(r)))
	}
}
