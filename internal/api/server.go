package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitescraper/internal/config"
	"github.com/JakeFAU/sitescraper/internal/crawler"
	"github.com/JakeFAU/sitescraper/internal/logging"
	"github.com/JakeFAU/sitescraper/internal/metrics"
)

// Scraper runs one crawl from a raw configuration mapping.
type Scraper interface {
	Scrape(ctx context.Context, raw map[string]any) (crawler.Summary, error)
}

// Server wires HTTP handlers to the scraper.
type Server struct {
	router   chi.Router
	scraper  Scraper
	cfg      config.Config
	logger   *zap.Logger
	draining atomic.Bool
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scraper Scraper, cfg config.Config, logger *zap.Logger) *Server {
	s := &Server{
		scraper: scraper,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/scrape", s.scrape)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Drain marks the server as shutting down so /readyz starts failing.
func (s *Server) Drain() {
	s.draining.Store(true)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type scrapeResponse struct {
	RunID         string `json:"run_id"`
	OutputPath    string `json:"output_path"`
	Discovered    int    `json:"discovered"`
	PagesFetched  int    `json:"pages_fetched"`
	PagesFailed   int    `json:"pages_failed"`
	RowsWritten   int    `json:"rows_written"`
	DuplicateRows int    `json:"duplicate_rows"`
	CircuitOpened bool   `json:"circuit_opened"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Server.MaxBodyBytes))
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body == nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	ctx := r.Context()
	if d := s.cfg.RunTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	summary, err := s.scraper.Scrape(ctx, s.cfg.CrawlMap(body))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("scrape failed", zap.String("request_id", requestIDFrom(r.Context())), zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, scrapeResponse{
		RunID:         summary.RunID,
		OutputPath:    summary.OutputPath,
		Discovered:    summary.Discovered,
		PagesFetched:  summary.PagesFetched,
		PagesFailed:   summary.PagesFailed,
		RowsWritten:   summary.RowsWritten,
		DuplicateRows: summary.DuplicateRows,
		CircuitOpened: summary.CircuitOpened,
	})
}

func statusFor(err error) int {
	var cfgErr *crawler.ConfigurationError
	var secErr *crawler.SecurityError
	switch {
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest
	case errors.As(err, &secErr):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func secondsOf(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
