// Package server exposes render workers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gmlewis/scenerender/render"
	"github.com/gmlewis/scenerender/scene"
	"github.com/gmlewis/scenerender/service"
)

// Renderer runs a command on a keyed worker. *service.Client implements it.
type Renderer interface {
	Render(ctx context.Context, key string, cmd service.Command) ([]byte, error)
}

// StatusSource lists the known workers. *service.Registry implements it.
type StatusSource interface {
	Workers() []service.WorkerInfo
}

// Server routes HTTP requests to render workers.
type Server struct {
	renderer Renderer
	status   StatusSource
	width    int
	height   int
	logger   *log.Logger
	router   chi.Router
}

// New returns a server for frames of width×height pixels.
func New(r Renderer, status StatusSource, width, height int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		renderer: r,
		status:   status,
		width:    width,
		height:   height,
		logger:   logger,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(s.logRequests)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealth)
	router.Route("/v1", func(r chi.Router) {
		r.Post("/render/{key}", s.handleRender)
		r.Post("/showcase/{key}", s.handleShowcase)
		r.Get("/workers", s.handleWorkers)
	})
	s.router = router
	return s
}

// NewFromApp returns a server for the workers of a.
func NewFromApp(a *service.App, logger *log.Logger) *Server {
	return New(a.Client, a.Registry, a.Config.Width, a.Config.Height, logger)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "ok")
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	x, err := floatParam(r, "x")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	y, err := floatParam(r, "y")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.render(w, r, service.RenderCommand{Position: scene.Pt(x, y)})
}

func (s *Server) handleShowcase(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, service.ShowcaseCommand{})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, cmd service.Command) {
	key := chi.URLParam(r, "key")
	data, err := s.renderer.Render(r.Context(), key, cmd)
	if err != nil {
		status := statusFor(err)
		s.logger.Warn("render request failed", "key", key, "status", status, "err", err)
		http.Error(w, err.Error(), status)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Length", strconv.Itoa(len(data)))
	h.Set("X-Frame-Width", strconv.Itoa(s.width))
	h.Set("X-Frame-Height", strconv.Itoa(s.height))
	if id := middleware.GetReqID(r.Context()); id != "" {
		h.Set(middleware.RequestIDHeader, id)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("client went away", "key", key, "err", err)
	}
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status.Workers()); err != nil {
		s.logger.Error("encode workers", "err", err)
	}
}

// floatParam parses an optional numeric query parameter, defaulting to 0.
func floatParam(r *http.Request, name string) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return f, nil
}

// statusFor maps render errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, service.ErrWorkerUnreachable),
		errors.Is(err, service.ErrTooManyWorkers),
		errors.Is(err, render.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownCommand):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
