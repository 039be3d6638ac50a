package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/c360/marinestreams/alert"
	"github.com/c360/marinestreams/config"
	"github.com/c360/marinestreams/eventbus"
	gwhttp "github.com/c360/marinestreams/gateway/http"
	"github.com/c360/marinestreams/health"
	"github.com/c360/marinestreams/metric"
	"github.com/c360/marinestreams/natsclient"
	"github.com/c360/marinestreams/pkg/retry"
	"github.com/c360/marinestreams/pkg/tlsutil"
	"github.com/c360/marinestreams/security"
	"github.com/c360/marinestreams/stream"
	"github.com/c360/marinestreams/stream/bridge"
)

// natsConnectRetry bounds the initial connection attempts at startup.
var natsConnectRetry = retry.Config{
	MaxAttempts:  5,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2,
	AddJitter:    true,
}

// app owns every long-lived component of the process.
type app struct {
	registry *metric.MetricsRegistry
	events   *eventbus.Hub
	nats     *natsclient.Client // nil when running standalone
	bridge   *bridge.Bridge
	alerts   *alert.Manager
	streams  *stream.Manager
	monitor  *health.Monitor
	server   *gwhttp.Server
	logger   *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		registry: metric.NewMetricsRegistry(),
		monitor:  health.NewMonitor(logger),
		logger:   logger,
	}
	metrics := a.registry.CoreMetrics()

	a.events = eventbus.NewHub(eventbus.WithLogger(logger), eventbus.WithMetrics(metrics))
	var bus eventbus.Bus = a.events

	if cfg.NATS.Enabled() {
		nc, err := connectNATS(ctx, cfg, metrics, logger)
		if err != nil {
			return nil, err
		}
		a.nats = nc
		bus = eventbus.NewForwarder(a.events, nc, cfg.EventBus.SubjectPrefix, logger)
		a.monitor.AddProbe("nats", func(context.Context) error {
			if !nc.IsHealthy() {
				return health.Degraded(fmt.Errorf("nats %s", nc.Status()))
			}
			return nil
		})
	} else {
		logger.Info("NATS not configured, running standalone")
	}

	a.alerts = alert.NewManager(bus,
		alert.WithSilenceDuration(cfg.Alerts.SilenceDuration),
		alert.WithEscalation(cfg.Alerts.EscalateAfter),
		alert.WithLogger(logger),
		alert.WithMetrics(metrics),
	)

	a.streams = stream.NewManager(
		stream.WithBufferedFrames(cfg.Streams.BufferedFrames),
		stream.WithSlowConsumerPolicy(cfg.Streams.MaxBufferedBytes, cfg.Streams.MaxConsecutiveDrops),
		stream.WithLogEvery(cfg.Streams.LogEvery),
		stream.WithLogger(logger),
		stream.WithMetrics(metrics),
		stream.WithBufferMetrics(a.registry),
	)

	if a.nats != nil {
		a.bridge = bridge.New(a.nats, a.streams, cfg.Streams.SubjectPrefix, logger)
		if err := a.bridge.Start(ctx); err != nil {
			a.closeNATS(5 * time.Second)
			return nil, err
		}
	}

	strategy, err := newStrategy(cfg.Security)
	if err != nil {
		a.closeNATS(5 * time.Second)
		return nil, err
	}

	serverTLS, err := tlsutil.LoadServerTLSConfig(cfg.HTTP.TLS)
	if err != nil {
		a.closeNATS(5 * time.Second)
		return nil, err
	}

	a.server, err = gwhttp.NewServer(gwhttp.Config{
		Addr:              cfg.HTTP.Addr,
		MaxRequestSize:    cfg.HTTP.MaxRequestSize,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		DeltaQueueSize:    cfg.EventBus.QueueSize,
		StreamQueueFrames: cfg.HTTP.StreamQueueFrames,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		PingInterval:      cfg.HTTP.PingInterval,
		Version:           Version,
		TLS:               serverTLS,
	}, gwhttp.Deps{
		Alerts:   a.alerts,
		Streams:  a.streams,
		Hub:      a.events,
		Security: strategy,
		Health:   a.monitor,
		Registry: a.registry,
		Logger:   logger,
	})
	if err != nil {
		a.closeNATS(5 * time.Second)
		return nil, err
	}

	return a, nil
}

func connectNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics, logger *slog.Logger) (*natsclient.Client, error) {
	opts := []natsclient.ClientOption{
		natsclient.WithName(appName + "-" + cfg.Platform.ID),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metrics),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	clientTLS, err := tlsutil.LoadClientTLSConfig(cfg.NATS.TLS)
	if err != nil {
		return nil, err
	}
	if clientTLS != nil {
		opts = append(opts, natsclient.WithTLSConfig(clientTLS))
	}

	nc, err := natsclient.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	logger.Info("Connecting to NATS", "urls", cfg.NATS.URLs)
	if err := nc.ConnectWithRetry(ctx, natsConnectRetry); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

func newStrategy(cfg config.SecurityConfig) (security.Strategy, error) {
	if !cfg.Enabled {
		return security.Disabled{}, nil
	}
	j, err := security.NewJWT(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("security: %w", err)
	}
	return j, nil
}

// run serves until ctx is cancelled or a component fails.
func (a *app) run(ctx context.Context, healthInterval time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.monitor.Run(gctx, healthInterval) })
	g.Go(func() error { return a.server.Run(gctx) })
	return g.Wait()
}

// shutdown stops alert timers and closes every websocket client, then drains NATS.
func (a *app) shutdown(timeout time.Duration) {
	a.alerts.Close()
	a.streams.Close()
	a.events.Close()
	a.closeNATS(timeout)
}

func (a *app) closeNATS(timeout time.Duration) {
	if a.nats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.nats.Close(ctx); err != nil {
		a.logger.Warn("NATS close failed", "error", err)
	}
}
