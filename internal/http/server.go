package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"wagebook/internal/cache"
	"wagebook/internal/core"
	applog "wagebook/internal/log"
	"wagebook/internal/middleware/ratelimit"
	"wagebook/internal/middleware/security"
	"wagebook/internal/middleware/trace"
	"wagebook/internal/services"
	"wagebook/internal/storage"
	appweb "wagebook/web"
)

// Server exposes the payroll API and dashboard over HTTP. Tenant scoping is
// enforced by the API key middleware; each handler only sees rows of the
// resolved company.
type Server struct {
	http.Server
	templates *template.Template

	storage  *storage.SQLiteRepository
	payroll  *services.PayrollService
	leave    *services.LeaveService
	advances *services.AdvanceService

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	headers     *security.HeadersMiddleware
	logger      *applog.Logger

	// Read caches, invalidated whenever the tenant mutates state.
	companyCache *cache.LRUCache[core.Company]
	runsCache    *cache.LRUCache[[]core.PayrollRun]
	slipsCache   *cache.LRUCache[[]core.Payslip]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, repo *storage.SQLiteRepository, payroll *services.PayrollService, leave *services.LeaveService, advances *services.AdvanceService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		storage:      repo,
		payroll:      payroll,
		leave:        leave,
		advances:     advances,
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:     security.NewDetector(),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		logger:       applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentHTTP}),
		companyCache: cache.NewLRUCache[core.Company](100, 5*time.Minute),
		runsCache:    cache.NewLRUCache[[]core.PayrollRun](100, time.Minute),
		slipsCache:   cache.NewLRUCache[[]core.Payslip](200, time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.companyCache)
	s.cacheManager.Register(s.runsCache)
	s.cacheManager.Register(s.slipsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	// Dashboard
	mux.HandleFunc("GET /{$}", s.guard(s.withCompany(s.handleIndex)))
	mux.HandleFunc("GET /ui/run-overview", s.guard(s.withCompany(s.handleRunOverview)))
	mux.HandleFunc("POST /ui/runs/open", s.guard(s.withCompany(s.handleOpenRunForm)))

	// Employees
	mux.HandleFunc("GET /api/employees", s.guard(s.withCompany(s.handleListEmployees)))
	mux.HandleFunc("POST /api/employees", s.guard(s.withCompany(s.handleCreateEmployee)))
	mux.HandleFunc("GET /api/employees/{id}", s.guard(s.withCompany(s.handleGetEmployee)))
	mux.HandleFunc("PUT /api/employees/{id}", s.guard(s.withCompany(s.handleUpdateEmployee)))
	mux.HandleFunc("POST /api/employees/{id}/terminate", s.guard(s.withCompany(s.handleTerminateEmployee)))

	// Payroll runs
	mux.HandleFunc("GET /api/runs", s.guard(s.withCompany(s.handleListRuns)))
	mux.HandleFunc("POST /api/runs", s.guard(s.withCompany(s.handleOpenRun)))
	mux.HandleFunc("GET /api/runs/{id}", s.guard(s.withCompany(s.handleGetRun)))
	mux.HandleFunc("POST /api/runs/{id}/queue", s.guard(s.withCompany(s.handleQueueRun)))
	mux.HandleFunc("POST /api/runs/{id}/approve", s.guard(s.withCompany(s.handleApproveRun)))
	mux.HandleFunc("POST /api/runs/{id}/post", s.guard(s.withCompany(s.handlePostRun)))
	mux.HandleFunc("POST /api/runs/{id}/void", s.guard(s.withCompany(s.handleVoidRun)))
	mux.HandleFunc("GET /api/runs/{id}/payslips", s.guard(s.withCompany(s.handleListPayslips)))

	// Leave
	mux.HandleFunc("GET /api/leave", s.guard(s.withCompany(s.handleListLeave)))
	mux.HandleFunc("POST /api/leave", s.guard(s.withCompany(s.handleRequestLeave)))
	mux.HandleFunc("POST /api/leave/{id}/approve", s.guard(s.withCompany(s.handleApproveLeave)))
	mux.HandleFunc("POST /api/leave/{id}/reject", s.guard(s.withCompany(s.handleRejectLeave)))

	// Advances
	mux.HandleFunc("GET /api/advances", s.guard(s.withCompany(s.handleListAdvances)))
	mux.HandleFunc("POST /api/advances", s.guard(s.withCompany(s.handleIssueAdvance)))

	// Ledger
	mux.HandleFunc("GET /api/journal", s.guard(s.withCompany(s.handleListJournal)))
	mux.HandleFunc("GET /api/trial-balance", s.guard(s.withCompany(s.handleTrialBalance)))

	return s
}

// guard wraps a handler with tracing, suspicious-request detection,
// rate limiting on mutating methods, and security headers.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := s.detector.ExtractClientIP(r)

		requestID := trace.GenerateRequestID()
		ctx := context.WithValue(r.Context(), trace.RequestIDKey, requestID)
		r = r.WithContext(ctx)

		logs := applog.NewStructuredLogger(s.logger.With(applog.FieldRequestID, requestID))
		logs.LogHTTPStart(ctx, r, clientIP)

		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(ctx, "Suspicious request blocked",
				"client_ip", clientIP,
				"url", r.URL.Path)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		if mutating(r.Method) && !s.rateLimiter.Allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		rw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		s.headers.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r)
		})).ServeHTTP(rw, r)

		logs.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.storage.ListCompanies(r.Context()); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
