package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/neogend-core/internal/audit"
	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/config"
	"github.com/nerrad567/neogend-core/internal/infrastructure/database"
	"github.com/nerrad567/neogend-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by the optional infrastructure clients
// reported on /health and /metrics.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	IsConnected() bool
}

// AuthMetrics receives login and renewal outcomes.
type AuthMetrics interface {
	WriteAuthEvent(outcome, rank string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Security      config.SecurityConfig
	Logger        *logging.Logger
	DB            *database.DB
	Store         auth.AccountStore
	Issuer        *auth.Issuer
	Verifier      *auth.Verifier
	Renewer       *auth.Renewer
	Authenticator *auth.Authenticator
	Ledger        *auth.Ledger
	Guard         *auth.Guard
	Audit         *audit.Recorder
	Hub           *Hub          // optional; created by New when nil
	MQTT          HealthChecker // optional
	Influx        HealthChecker // optional
	Metrics       AuthMetrics   // optional
	Version       string
}

// Server is the HTTP front of the session authority.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	db        *database.DB
	store     auth.AccountStore
	issuer    *auth.Issuer
	verifier  *auth.Verifier
	renewer   *auth.Renewer
	authn     *auth.Authenticator
	ledger    *auth.Ledger
	guard     *auth.Guard
	audit     *audit.Recorder
	hub       *Hub
	mqtt      HealthChecker
	influx    HealthChecker
	metrics   AuthMetrics
	tickets   *ticketStore
	version   string
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("account store is required")
	case deps.Issuer == nil, deps.Verifier == nil, deps.Renewer == nil, deps.Authenticator == nil:
		return nil, fmt.Errorf("issuer, verifier, renewer and authenticator are required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger is required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("guard is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		db:        deps.DB,
		store:     deps.Store,
		issuer:    deps.Issuer,
		verifier:  deps.Verifier,
		renewer:   deps.Renewer,
		authn:     deps.Authenticator,
		ledger:    deps.Ledger,
		guard:     deps.Guard,
		audit:     deps.Audit,
		hub:       deps.Hub,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		metrics:   deps.Metrics,
		tickets:   newTicketStore(),
		version:   deps.Version,
		startTime: time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
	}
	return s, nil
}

// Hub returns the session channel hub so callers can register it as a
// ledger sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.ReadTimeout(),
		WriteTimeout:      s.cfg.WriteTimeout(),
		IdleTimeout:       s.cfg.IdleTimeout(),
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

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
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

// recordAuthMetric forwards an outcome to the metrics writer when one is
// configured.
func (s *Server) recordAuthMetric(outcome string, rank auth.Rank) {
	if s.metrics == nil {
		return
	}
	label := ""
	if rank.Valid() {
		label = rank.String()
	}
	s.metrics.WriteAuthEvent(outcome, label)
}
