// Package http serves the web UI and the JSON statistics endpoints.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"potrosnja/internal/auth"
	"potrosnja/internal/cache"
	"potrosnja/internal/core"
	applog "potrosnja/internal/log"
	"potrosnja/internal/services"
	appweb "potrosnja/web"
)

const sessionCookieName = "session_token"

type Server struct {
	http.Server
	templates     *template.Template
	auth          *auth.Service
	expenses      *services.ExpenseService
	secureCookies bool
	rateLimiter   *rateLimiter
	metrics       securityMetrics
	accessLog     *applog.AccessLogger

	// summaryCache keeps per-user month summaries off the hot path.
	// Keys are "stats:<userID>:<YYYY-MM>"; all of a user's entries are
	// invalidated when they record an expense.
	summaryCache *cache.LRUCache[core.MonthSummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, authSvc *auth.Service, expSvc *services.ExpenseService, secureCookies bool) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:          authSvc,
		expenses:      expSvc,
		secureCookies: secureCookies,
		rateLimiter:   newRateLimiter(),
		accessLog:     applog.NewAccessLogger(applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)),
		summaryCache:  cache.NewLRUCache[core.MonthSummary](200, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /signup", s.withSecurityHeaders(s.handleSignupForm))
	mux.HandleFunc("POST /signup", s.withSecurityHeaders(s.handleSignup))
	mux.HandleFunc("GET /login", s.withSecurityHeaders(s.handleLoginForm))
	mux.HandleFunc("POST /login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("GET /logout", s.withSecurityHeaders(s.handleLogout))

	mux.HandleFunc("GET /{$}", s.withSecurityHeaders(s.requireUser(s.handleDashboard)))

	mux.HandleFunc("GET /categories", s.withSecurityHeaders(s.requireUser(s.handleCategories)))
	mux.HandleFunc("POST /categories", s.withSecurityHeaders(s.requireUser(s.handleAddCategory)))
	mux.HandleFunc("POST /categories/{id}/delete", s.withSecurityHeaders(s.requireUser(s.handleDeleteCategory)))

	mux.HandleFunc("GET /expenses", s.withSecurityHeaders(s.requireUser(s.handleExpenses)))
	mux.HandleFunc("GET /expenses/new", s.withSecurityHeaders(s.requireUser(s.handleExpenseForm)))
	mux.HandleFunc("POST /expenses", s.withSecurityHeaders(s.requireUser(s.handleCreateExpense)))
	mux.HandleFunc("GET /expenses/{id}", s.withSecurityHeaders(s.requireUser(s.handleExpenseDetail)))

	mux.HandleFunc("GET /receipts/{id}", s.withSecurityHeaders(s.requireUser(s.handleReceipt)))
	mux.HandleFunc("GET /receipts/{id}/download", s.withSecurityHeaders(s.requireUser(s.handleReceiptDownload)))

	mux.HandleFunc("GET /stats", s.withSecurityHeaders(s.requireUser(s.handleStatsPage)))
	mux.HandleFunc("GET /api/stats/categories", s.withSecurityHeaders(s.requireUser(s.handleStatsCategories)))
	mux.HandleFunc("GET /api/stats/months", s.withSecurityHeaders(s.requireUser(s.handleStatsMonths)))
	mux.HandleFunc("GET /api/stats/top", s.withSecurityHeaders(s.requireUser(s.handleStatsTop)))
	mux.HandleFunc("GET /api/stats/recent", s.withSecurityHeaders(s.requireUser(s.handleStatsRecent)))

	return s
}

// Shutdown stops the background loops and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting and request
// logging to a handler.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r, &s.metrics)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		ctx = context.WithValue(ctx, applog.LoggerContextKey, applog.FromContext(ctx).With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		s.accessLog.LogHTTPStart(ctx, r, clientIP)

		// Writes are rate limited; reads are not.
		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, &s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.accessLog.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) summaryCacheKey(userID int64, yearMonth string) string {
	return fmt.Sprintf("stats:%d:%s", userID, yearMonth)
}

// cachedMonthSummary serves the current month summary through the cache.
func (s *Server) cachedMonthSummary(ctx context.Context, userID int64) (core.MonthSummary, error) {
	key := s.summaryCacheKey(userID, core.Today(time.Now()).YearMonth())
	if sum, found := s.summaryCache.Get(key); found {
		slog.DebugContext(ctx, "Month summary cache hit", "user_id", userID)
		return sum, nil
	}

	sum, err := s.expenses.CurrentMonthSummary(ctx, userID)
	if err != nil {
		return core.MonthSummary{}, err
	}
	s.summaryCache.Set(key, sum)
	return sum, nil
}

// invalidateUserStats drops all cached summaries for the user.
func (s *Server) invalidateUserStats(userID int64) {
	s.summaryCache.DeletePrefix(fmt.Sprintf("stats:%d:", userID))
}
