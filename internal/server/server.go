// Package server exposes the dashboard over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/dashboard"
)

// Dashboard is the view source behind the API.
type Dashboard interface {
	Options(ctx context.Context) (dashboard.Options, error)
	Snapshot(ctx context.Context, sel dashboard.Selection) dashboard.View
}

// Config configures the HTTP server.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Server serves the dashboard API.
type Server struct {
	dash Dashboard
	cfg  Config
}

// New creates a Server over dash.
func New(dash Dashboard, cfg Config) *Server {
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	return &Server{dash: dash, cfg: cfg}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/filters", s.filters)
		r.Get("/dashboard", s.snapshot)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) filters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.dash.Options(r.Context())
	if err != nil {
		zap.L().Error("server: load filter options", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "could not load dashboard data"})
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	sel, err := ParseSelection(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Load failures are rendered inline in the view, not as HTTP errors.
	writeJSON(w, http.StatusOK, s.dash.Snapshot(r.Context(), sel))
}

// ParseSelection reads start, end, faculty and network from q. An absent
// parameter selects the default; a present but empty category parameter
// selects nothing. Multiple categories are passed as repeated parameters;
// values are taken whole, so names may contain commas.
func ParseSelection(q url.Values) (dashboard.Selection, error) {
	var sel dashboard.Selection
	var err error
	if sel.Start, err = parseDate(q, "start"); err != nil {
		return sel, err
	}
	if sel.End, err = parseDate(q, "end"); err != nil {
		return sel, err
	}
	sel.Faculties = parseList(q, "faculty")
	sel.Networks = parseList(q, "network")
	return sel, nil
}

func parseDate(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, eris.Errorf("invalid %s date %q: want YYYY-MM-DD", name, raw)
	}
	return &t, nil
}

func parseList(q url.Values, name string) []string {
	vals, ok := q[name]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}
