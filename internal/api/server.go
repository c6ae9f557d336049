// Package api provides the local HTTP control surface for the daemon.
//
// It exposes the current security posture, per-device state, and recent
// sweep history, and accepts toggle requests that feed the control loop
// like any other trigger source.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/greyhollow/killswitch/internal/device"
	"github.com/greyhollow/killswitch/internal/infrastructure/config"
	"github.com/greyhollow/killswitch/internal/infrastructure/logging"
	"github.com/greyhollow/killswitch/internal/journal"
	"github.com/greyhollow/killswitch/internal/trigger"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// triggerBuffer is the capacity of the pending toggle request queue.
const triggerBuffer = 4

// Posture is the control loop view the API reads from.
type Posture interface {
	Secure() bool
	LastToggle() time.Time
}

// SweepHistory reads persisted sweep records, nil when the journal is
// disabled.
type SweepHistory interface {
	RecentSweeps(ctx context.Context, limit int) ([]journal.SweepRecord, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Posture  Posture
	History  SweepHistory
	Version  string
}

// Server is the HTTP control server.
//
// It manages the HTTP listener, routes, and middleware, and doubles as a
// trigger source: POST /api/v1/toggle queues an event that the control
// loop consumes through Run.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	registry *device.Registry
	posture  Posture
	history  SweepHistory
	version  string
	server   *http.Server
	pending  chan trigger.Event
}

// New creates an API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Posture == nil {
		return nil, fmt.Errorf("posture source is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		registry: deps.Registry,
		posture:  deps.Posture,
		history:  deps.History,
		version:  deps.Version,
		pending:  make(chan trigger.Event, triggerBuffer),
	}, nil
}

// Name identifies the server as a trigger source.
func (s *Server) Name() string { return "api" }

// Run forwards queued toggle requests to the control loop until the
// context is cancelled, satisfying trigger.Source.
func (s *Server) Run(ctx context.Context, events chan<- trigger.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.pending:
			select {
			case events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server, waiting up to ten seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
