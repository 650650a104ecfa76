package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vietddude/opswatch/internal/core/domain"
)

const sseKeepAlive = 15 * time.Second

// StatusSource is the read side of the monitor.
type StatusSource interface {
	View() View
	Composite() (Composite, bool)
	PacingWindow() []domain.PacingSample
	PacingSaturated() bool
	Refresh()
}

// AlertFeed delivers fired alerts to live subscribers.
type AlertFeed interface {
	Subscribe() (<-chan domain.AlertRecord, func())
}

// Detailed is the body of /health/detailed.
type Detailed struct {
	View      View       `json:"view"`
	Composite *Composite `json:"composite,omitempty"`
	Pacing    PacingView `json:"pacing"`
}

// PacingView is the body of /pacing.
type PacingView struct {
	Samples   []domain.PacingSample `json:"samples"`
	Saturated bool                  `json:"saturated"`
}

// Server provides HTTP endpoints for the monitor.
type Server struct {
	source StatusSource
	alerts AlertFeed
	server *http.Server
}

// NewServer creates a new status server. alerts may be nil.
func NewServer(source StatusSource, alerts AlertFeed, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		alerts: alerts,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.HandleFunc("GET /pacing", s.handlePacing)
	mux.HandleFunc("GET /alerts/stream", s.handleAlertStream)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	view := s.source.View()

	code := http.StatusOK
	if view.Overall != OverallHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(view.Overall)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	resp := Detailed{
		View: s.source.View(),
		Pacing: PacingView{
			Samples:   s.source.PacingWindow(),
			Saturated: s.source.PacingSaturated(),
		},
	}
	if c, ok := s.source.Composite(); ok {
		resp.Composite = &c
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePacing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PacingView{
		Samples:   s.source.PacingWindow(),
		Saturated: s.source.PacingSaturated(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.source.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

func (s *Server) handleAlertStream(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		http.Error(w, "alert stream disabled", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	ch, cancel := s.alerts.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flush()
		case rec, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(rec)
			if err != nil {
				slog.Error("Failed to encode alert", "id", rec.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", rec.ID, rec.Kind, data); err != nil {
				return
			}
			flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}
