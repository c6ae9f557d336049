package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/greyhollow/killswitch/internal/trigger"
)

// defaultSweepLimit is how many sweep records the history endpoint
// returns when no limit is given.
const defaultSweepLimit = 20

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/devices", s.handleDevices)
		r.Get("/sweeps", s.handleSweeps)
		r.Post("/toggle", s.handleToggle)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// statusResponse is the posture summary returned by /status.
type statusResponse struct {
	Secure     bool       `json:"secure"`
	Devices    int        `json:"devices"`
	VMs        int        `json:"vms"`
	LastToggle *time.Time `json:"last_toggle,omitempty"`
}

// handleStatus returns the current posture and inventory counts.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Secure:  s.posture.Secure(),
		Devices: s.registry.DeviceCount(),
		VMs:     s.registry.VMCount(),
	}
	if last := s.posture.LastToggle(); !last.IsZero() {
		resp.LastToggle = &last
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleDevices returns the per-device state snapshot.
func (s *Server) handleDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.registry.Snapshot(),
	})
}

// handleSweeps returns recent sweep records from the journal.
func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "journal disabled")
		return
	}

	limit := defaultSweepLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	sweeps, err := s.history.RecentSweeps(r.Context(), limit)
	if err != nil {
		s.logger.Error("sweep history query failed", "error", err)
		writeInternalError(w, "sweep history unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sweeps": sweeps,
	})
}

// handleToggle queues a toggle request for the control loop. The sweep
// runs asynchronously; poll /status for the resulting posture.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	ev := trigger.Event{Source: s.Name(), At: time.Now()}

	select {
	case s.pending <- ev:
		s.logger.Info("toggle request accepted",
			"request_id", r.Context().Value(ctxKeyRequestID))
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"secure": s.posture.Secure(),
		})
	default:
		writeError(w, http.StatusServiceUnavailable, ErrCodeBusy,
			"toggle queue full, retry later")
	}
}
