// Package server exposes the merge pipeline over HTTP.
//
// Routes:
//
//	GET  /status           run metadata and statistics (503 before first run)
//	GET  /geojson/original  pre-merge municipalities, computing on demand
//	GET  /geojson/merged    post-merge regions, computing on demand
//	POST /refresh           force a recomputation, bypassing the cache
//
// Concurrent requests for the same parameter set are coalesced into one
// pipeline run; the latest result is kept in memory for the read-only
// status route.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/geobr-tools/munimerge/pkg/ibge"
	"github.com/geobr-tools/munimerge/pkg/merge"
	"github.com/geobr-tools/munimerge/pkg/pipeline"
)

// ErrNotInitialized is returned by the status route before any run has
// completed.
var ErrNotInitialized = errors.New("no pipeline result available yet")

// Executor runs the pipeline. *pipeline.Runner implements it; tests
// substitute stubs.
type Executor interface {
	Execute(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	cfg      Config
	executor Executor
	logger   *log.Logger

	group singleflight.Group

	mu   sync.RWMutex
	last *pipeline.Result
}

// New creates a server around an executor.
func New(cfg Config, executor Executor, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{cfg: cfg, executor: executor, logger: logger}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/geojson/original", s.handleGeoJSON(func(res *pipeline.Result) any { return res.Original }))
	r.Get("/geojson/merged", s.handleGeoJSON(func(res *pipeline.Result) any { return res.Merged }))
	r.Post("/refresh", s.handleRefresh)
	return r
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("server listening", "addr", s.cfg.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// statusResponse is the /status payload. Geometry is deliberately absent;
// the geojson routes serve it.
type statusResponse struct {
	RunID          string              `json:"run_id"`
	Threshold      int                 `json:"threshold"`
	PopulationYear int                 `json:"population_year"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Iterations     int                 `json:"iterations"`
	Stats          any                 `json:"stats"`
	Adjacency      map[string][]string `json:"adjacency"`
}

// handleStatus is read-only: it reports the latest completed run and never
// triggers one.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	if last == nil {
		s.writeError(w, http.StatusServiceUnavailable, ErrNotInitialized)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		RunID:          last.RunID,
		Threshold:      last.Threshold,
		PopulationYear: last.PopulationYear,
		GeneratedAt:    last.GeneratedAt,
		Iterations:     last.Iterations,
		Stats:          last.Stats,
		Adjacency:      last.Adjacency,
	})
}

// handleGeoJSON serves one of the two feature collections, running the
// pipeline first if needed.
func (s *Server) handleGeoJSON(pick func(*pipeline.Result) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := s.optionsFromRequest(r, false)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		result, err := s.ensure(r.Context(), opts)
		if err != nil {
			s.writeError(w, statusFor(err), err)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		s.writeJSON(w, http.StatusOK, pick(result))
	}
}

// handleRefresh recomputes unconditionally and reports the new run.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	opts, err := s.optionsFromRequest(r, true)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	result, err := s.ensure(r.Context(), opts)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		RunID:          result.RunID,
		Threshold:      result.Threshold,
		PopulationYear: result.PopulationYear,
		GeneratedAt:    result.GeneratedAt,
		Iterations:     result.Iterations,
		Stats:          result.Stats,
		Adjacency:      result.Adjacency,
	})
}

// optionsFromRequest reads threshold and year query parameters, falling
// back to the configured defaults.
func (s *Server) optionsFromRequest(r *http.Request, refresh bool) (pipeline.Options, error) {
	opts := pipeline.Options{
		Threshold:      s.cfg.Threshold,
		PopulationYear: s.cfg.PopulationYear,
		Refresh:        refresh,
		Logger:         s.logger,
	}
	// Zero is the unset sentinel in pipeline.Options, so an explicit
	// non-positive parameter is rejected here instead of silently running
	// with the default.
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: threshold %q is not a number", pipeline.ErrValidation, v)
		}
		if n <= 0 {
			return opts, fmt.Errorf("%w: threshold must be positive, got %d", pipeline.ErrValidation, n)
		}
		opts.Threshold = n
	}
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%w: year %q is not a number", pipeline.ErrValidation, v)
		}
		if n <= 0 {
			return opts, fmt.Errorf("%w: year must be positive, got %d", pipeline.ErrValidation, n)
		}
		opts.PopulationYear = n
	}
	return opts, nil
}

// ensure returns a result for the given options, coalescing concurrent
// identical requests into a single pipeline run.
func (s *Server) ensure(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error) {
	key := fmt.Sprintf("%d/%d/%t", opts.Threshold, opts.PopulationYear, opts.Refresh)
	v, err, shared := s.group.Do(key, func() (any, error) {
		result, err := s.executor.Execute(ctx, opts)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.last = result
		s.mu.Unlock()
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("request coalesced", "key", key)
	}
	return v.(*pipeline.Result), nil
}

// statusFor maps pipeline failures to HTTP statuses: bad parameters are the
// client's fault, malformed upstream payloads are a bad gateway, and a
// stuck merge is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ibge.ErrUnexpectedShape):
		return http.StatusBadGateway
	case errors.As(err, new(*merge.NoCandidateError)):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Error("request failed", "status", status, "err", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
