// Package web provides the JSON API over a publication catalog.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/config"
	"github.com/JonMunkholm/pubsum/internal/store"
	weblog "github.com/JonMunkholm/pubsum/internal/web/middleware"
)

// Catalog is the set of catalog operations the API exposes.
// Satisfied by *catalog.Catalog.
type Catalog interface {
	Source() *catalog.Table
	FilterByTitle(keyword string) (*catalog.Table, error)
	FilterByAuthor(name string) (*catalog.Table, error)
	FilterByYearRange(startYear, endYear int64) (*catalog.Table, error)
	FilterByType(keyword string) (*catalog.Table, error)
	YearlySummary() (*catalog.Table, error)
	TotalSummary() (*catalog.Table, error)
}

// ExportHistory lists archived exports. Satisfied by *store.Store.
type ExportHistory interface {
	Recent(ctx context.Context, limit int) ([]store.Run, error)
}

// Server is the HTTP server for the publication API.
type Server struct {
	catalog Catalog
	history ExportHistory
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server. history may be nil when the export
// archive is disabled.
func NewServer(cat Catalog, history ExportHistory, cfg config.ServerConfig) *Server {
	s := &Server{
		catalog: cat,
		history: history,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()

	// Built up front so Shutdown may run on another goroutine at any time.
	s.server = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(weblog.Logger)
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
	s.router.Use(securityHeaders)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/publications", s.handleListPublications)

		// Filters export their result as a side effect
		r.Get("/filter/title", s.handleTextFilter(s.catalog.FilterByTitle))
		r.Get("/filter/author", s.handleTextFilter(s.catalog.FilterByAuthor))
		r.Get("/filter/type", s.handleTextFilter(s.catalog.FilterByType))
		r.Get("/filter/year", s.handleYearFilter)

		// Summaries
		r.Get("/summary/yearly", s.handleSummary(s.catalog.YearlySummary))
		r.Get("/summary/total", s.handleSummary(s.catalog.TotalSummary))
		r.Get("/summary/yearly.xlsx", s.handleSummaryDownload("Yearly_Summary.xlsx", s.catalog.YearlySummary))
		r.Get("/summary/total.xlsx", s.handleSummaryDownload("Total_Summary.xlsx", s.catalog.TotalSummary))

		// Export archive
		r.Get("/exports", s.handleListExports)
	})
}

// Start begins listening for HTTP requests. It returns http.ErrServerClosed
// after Shutdown, including a Shutdown that ran before Start.
func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "path", r.URL.Path, "error", err)
	}
}
