package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/fog-access-core/internal/access"
	"github.com/nerrad567/fog-access-core/internal/audit"
	"github.com/nerrad567/fog-access-core/internal/auth"
	"github.com/nerrad567/fog-access-core/internal/backend"
	"github.com/nerrad567/fog-access-core/internal/device"
	"github.com/nerrad567/fog-access-core/internal/events"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional uplink is connected.
// *mqtt.Client and *influxdb.Client satisfy it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	DB       *database.DB
	Gateway  *auth.Gateway
	Devices  *device.Registry
	Access   *access.Validator
	Syncer   *backend.Syncer // optional: nil disables POST /rfid/sync
	Events   *events.Publisher
	Metrics  *events.Metrics
	Gatherer prometheus.Gatherer // served on /metrics; nil disables it
	Audit    audit.Repository    // optional: nil disables GET /audit
	Recorder *audit.Recorder
	MQTT     ConnectionStatus
	Influx   ConnectionStatus
	Hub      *Hub // If set, the server uses this hub instead of creating its own
	Version  string
}

// Server is the HTTP API server of the fog node.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	db        *database.DB
	gateway   *auth.Gateway
	devices   *device.Registry
	access    *access.Validator
	syncer    *backend.Syncer
	events    *events.Publisher
	metrics   *events.Metrics
	gatherer  prometheus.Gatherer
	auditRepo audit.Repository
	recorder  *audit.Recorder
	mqtt      ConnectionStatus
	influx    ConnectionStatus
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, gateway, device registry, access validator)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("auth gateway is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Access == nil {
		return nil, fmt.Errorf("access validator is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		db:        deps.DB,
		gateway:   deps.Gateway,
		devices:   deps.Devices,
		access:    deps.Access,
		syncer:    deps.Syncer,
		events:    deps.Events,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		auditRepo: deps.Audit,
		recorder:  deps.Recorder,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// The event publisher broadcasts through the hub, so main usually
	// creates it first and injects it here.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}

	return s, nil
}

// Handler returns the fully wired router. Start uses it for the listener;
// tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless one was injected) and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
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
