package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/service"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/sla"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/snapshot"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Options tune the HTTP server.
type Options struct {
	Listen          string
	ShutdownTimeout time.Duration
}

// Server is the boundary surface: it decodes inbound domain events exactly
// once into canonical types and exposes the operator endpoints.
type Server struct {
	svc    *service.Service
	opts   Options
	logger zerolog.Logger
}

// NewServer constructs the ingest server.
func NewServer(svc *service.Service, opts Options, logger zerolog.Logger) *Server {
	if opts.Listen == "" {
		opts.Listen = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		svc:    svc,
		opts:   opts,
		logger: logger.With().Str("component", "ingest").Logger(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /events/sale", s.handleSale)
	mux.HandleFunc("POST /events/goal", s.handleGoal)

	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /feed", s.handleFeed)
	mux.HandleFunc("GET /notifications", s.handleNotifications)

	mux.HandleFunc("GET /alerts", s.handleAlerts)
	mux.HandleFunc("GET /alerts/stats", s.handleAlertStats)
	mux.HandleFunc("POST /alerts/{id}/resolve", s.handleResolve)
	mux.HandleFunc("POST /alerts/{id}/cancel", s.handleCancel)
	mux.HandleFunc("POST /scan", s.handleForceScan)

	mux.Handle("GET /metrics", telemetry.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// Run serves until ctx is cancelled, then drains within the shutdown bound.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.opts.Listen).Msg("ingest server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSale(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sale, err := event.DecodeSale(payload)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	entry := s.svc.HandleSale(r.Context(), sale)
	writeJSON(w, http.StatusAccepted, map[string]any{"id": entry.ID})
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	goal, err := event.DecodeGoalAchieved(payload)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	note, created := s.svc.HandleGoalAchieved(r.Context(), goal)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"celebrationId": note.ID,
		"created":       created,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot()
	if err != nil {
		if errors.Is(err, snapshot.ErrQueryTimeout) {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.FeedEntries())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Notifications())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	writeJSON(w, http.StatusOK, s.svc.Alerts(activeOnly))
}

func (s *Server) handleAlertStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.AlertStats())
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	alert, err := s.svc.ResolveAlert(r.PathValue("id"))
	if err != nil {
		writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	alert, err := s.svc.CancelAlert(r.PathValue("id"))
	if err != nil {
		writeAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleForceScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.ForceScan(r.Context())
	if err != nil {
		var rl *sla.RateLimitedError
		if errors.As(err, &rl) {
			w.Header().Set("Retry-After", formatSeconds(rl.RetryAfter))
			writeError(w, http.StatusTooManyRequests, err)
			return
		}
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sla.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, sla.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// formatSeconds renders a Retry-After value, never below one second.
func formatSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
