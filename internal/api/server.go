package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-amp/internal/bridges/amp"
	"github.com/nerrad567/gray-logic-amp/internal/history"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-amp/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// AmpController is the bridge surface used by the handlers.
// Satisfied by *amp.Bridge.
type AmpController interface {
	DeviceID() string
	Ready() <-chan struct{}
	DeviceHealth() amp.DeviceHealth
	Diagnostics() map[string]any
	Execute(cmd amp.CommandMessage, source string) (amp.StateMessage, error)
	ReadState() (map[string]any, error)
}

// HistoryLister lists operation log events.
// Satisfied by *history.SQLiteRepository.
type HistoryLister interface {
	List(ctx context.Context, filter history.Filter) (*history.ListResult, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Amp     AmpController
	History HistoryLister // optional: /history returns 503 without it

	// Hub, if set, is used instead of creating one. The bridge needs the hub
	// before the server exists, so ampd creates it first.
	Hub *Hub

	Version string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	amp     AmpController
	history HistoryLister
	version string
	tickets *ticketStore

	hub         *Hub
	externalHub bool

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Amp == nil {
		return nil, fmt.Errorf("amp controller is required")
	}

	s := &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		amp:     deps.Amp,
		history: deps.History,
		version: deps.Version,
		tickets: newTicketStore(),
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.Config.WebSocket, deps.Logger)
	}

	if deps.Config.JWT.Secret == "" {
		s.logger.Warn("API authentication disabled: no JWT secret configured")
	}
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background.
//
// Parameters:
//   - ctx: Parent for background goroutines (hub, ticket cleanup)
//
// Returns:
//   - error: If the address cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
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

	if s.Addr() == "" {
		return fmt.Errorf("api server not started")
	}
	return nil
}
