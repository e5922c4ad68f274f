// Package server exposes a running batch over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/batch"
)

const shutdownTimeout = 5 * time.Second

// Batch is the controller surface served over HTTP.
type Batch interface {
	Snapshot() batch.Snapshot
	Stop()
}

type Server struct {
	batch  Batch
	router *chi.Mux
}

// New builds the router. A nil gatherer disables /metrics.
func New(b Batch, g prometheus.Gatherer) *Server {
	s := &Server{batch: b}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/status", s.handleStatus)
	r.Get("/jobs", s.handleJobs)
	r.Post("/stop", s.handleStop)
	if g != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.batch.Snapshot())
}

type jobStatus struct {
	ID    int    `json:"id"`
	State string `json:"state"`
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	snap := s.batch.Snapshot()
	jobs := make([]jobStatus, len(snap.Jobs))
	for id, js := range snap.Jobs {
		jobs[id] = jobStatus{ID: id, State: js.String()}
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if snap := s.batch.Snapshot(); snap.Phase != batch.Running {
		writeError(w, http.StatusConflict, errors.New("batch is "+snap.Phase.String()))
		return
	}
	s.batch.Stop()
	writeJSON(w, http.StatusOK, s.batch.Snapshot())
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("writing response")
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
