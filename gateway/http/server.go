package http

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/c360/marinestreams/alert"
	"github.com/c360/marinestreams/errors"
	"github.com/c360/marinestreams/eventbus"
	"github.com/c360/marinestreams/health"
	"github.com/c360/marinestreams/metric"
	"github.com/c360/marinestreams/security"
	"github.com/c360/marinestreams/stream"
)

// API path prefixes.
const (
	APIPrefix     = "/signalk/v2/api"
	AlertsPath    = APIPrefix + "/alerts"
	StreamsPath   = APIPrefix + "/streams"
	RadarPath     = APIPrefix + "/vessels/self/radars/{id}/stream"
	DeltaPath     = "/signalk/v1/stream"
	HealthPath    = "/health"
	MetricsPath   = "/metrics"
	SystemName    = "marinestreams"
	shutdownGrace = 5 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	Addr              string
	MaxRequestSize    int64
	CORSOrigins       []string
	DeltaQueueSize    int
	StreamQueueFrames int
	WriteTimeout      time.Duration
	PingInterval      time.Duration
	Version           string
	TLS               *tls.Config // nil serves plain http and ws
}

// DefaultConfig returns the settings used when a field is left zero.
func DefaultConfig() Config {
	return Config{
		Addr:              ":3000",
		MaxRequestSize:    1 << 20,
		DeltaQueueSize:    eventbus.DefaultQueueSize,
		StreamQueueFrames: 1024,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		Version:           "dev",
	}
}

// Deps are the components the server exposes. Alerts, Streams and Hub are
// required; a nil Security disables authorization, a nil Health reports
// healthy and a nil Registry serves no /metrics.
type Deps struct {
	Alerts   *alert.Manager
	Streams  *stream.Manager
	Hub      *eventbus.Hub
	Security security.Strategy
	Health   *health.Monitor
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger
}

// Server is the hub's HTTP front end.
type Server struct {
	cfg      Config
	deps     Deps
	upgrader websocket.Upgrader
	router   chi.Router
	logger   *slog.Logger
}

// NewServer validates deps and builds the router.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Alerts == nil:
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer", "alert manager is required")
	case deps.Streams == nil:
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer", "stream manager is required")
	case deps.Hub == nil:
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Server", "NewServer", "event hub is required")
	}
	if deps.Security == nil {
		deps.Security = security.Disabled{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = def.MaxRequestSize
	}
	if cfg.DeltaQueueSize <= 0 {
		cfg.DeltaQueueSize = def.DeltaQueueSize
	}
	if cfg.StreamQueueFrames <= 0 {
		cfg.StreamQueueFrames = def.StreamQueueFrames
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.Version == "" {
		cfg.Version = def.Version
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger.With("component", "gateway.http"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route(AlertsPath, func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Get("/", s.listAlerts)
		r.Post("/", s.createAlert)
		r.Delete("/", s.cleanAlerts)
		r.Post("/mob", s.raiseMOB)
		r.Post("/ack", s.ackAll)
		r.Post("/silence", s.silenceAll)
		r.Get("/{id}", s.getAlert)
		r.Delete("/{id}", s.deleteAlert)
		r.Post("/{id}/ack", s.ackAlert)
		r.Post("/{id}/unack", s.unackAlert)
		r.Post("/{id}/silence", s.silenceAlert)
		r.Post("/{id}/resolve", s.resolveAlert)
		r.Put("/{id}/properties", s.setProperties)
		r.Put("/{id}/priority", s.updatePriority)
	})

	r.Get(StreamsPath, s.listStreams)
	r.Get(StreamsPath+"/*", s.streamUpgrade)
	r.Get(RadarPath, s.radarUpgrade)
	r.Get(DeltaPath, s.deltaStream)

	r.Get(HealthPath, s.health)
	if s.deps.Registry != nil {
		r.Handle(MetricsPath, s.deps.Registry.Handler())
	}
	return r
}

// checkOrigin allows same-host upgrades and any configured origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, http.StatusOK, health.NewHealthy(SystemName, "ok"))
		return
	}
	status := s.deps.Health.AggregateHealth(SystemName)
	code := http.StatusOK
	if status.IsUnhealthy() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.WrapFatal(err, "Server", "Run", "listen on "+s.cfg.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "tls", s.cfg.TLS != nil)

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapFatal(err, "Server", "Serve", "serve http")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.WrapTransient(err, "Server", "Serve", "graceful shutdown")
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
