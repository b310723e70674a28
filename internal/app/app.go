// Package app wires configuration, the session keeper and every listener
// into one runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	grpcapi "github.com/hyy20190326/luis-0509/internal/api/grpc"
	"github.com/hyy20190326/luis-0509/internal/bridge"
	"github.com/hyy20190326/luis-0509/internal/config"
	"github.com/hyy20190326/luis-0509/internal/events"
	httpapi "github.com/hyy20190326/luis-0509/internal/http"
	"github.com/hyy20190326/luis-0509/internal/notify"
	"github.com/hyy20190326/luis-0509/internal/observability"
	"github.com/hyy20190326/luis-0509/internal/observability/logging"
	"github.com/hyy20190326/luis-0509/internal/service/keeper"
)

const shutdownTimeout = 10 * time.Second

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Settings

	Keeper *keeper.Keeper
	Bridge *bridge.Bridge

	publisher *events.Publisher
	logCloser io.Closer
	engines   io.Closer

	httpServer *http.Server
	grpcServer *grpcapi.Server
	obsServer  *observability.Server

	httpLis net.Listener
	grpcLis net.Listener
	obsLis  net.Listener
}

// New configures logging and builds the keeper and its collaborators.
// Nothing listens until Start.
func New(cfg *config.Settings) (*Application, error) {
	level := cfg.Log.Level
	if cfg.Debug {
		level = "debug"
	}
	logCloser, err := logging.Init(logging.Config{
		Level:        level,
		Format:       cfg.Log.Format,
		Folder:       cfg.Log.Folder,
		FileName:     "luis.log",
		RotateSizeMB: cfg.Log.RotateSizeMB,
		Stdout:       cfg.Log.Stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
	})

	notifyOpts := notify.Options{
		URL:     cfg.NotifyURL,
		AuthKey: cfg.AuthKey,
		Timeout: cfg.NotifyTimeout,
	}
	if publisher.Enabled() {
		notifyOpts.Mirror = publisher
	}

	k := keeper.New(notify.New(notifyOpts), keeper.Options{
		AppID:  cfg.AppID,
		Policy: keeper.Policy(cfg.Keeper.DuplicatePolicy),
	})

	a := &Application{
		Logger:    logging.WithComponent("application"),
		Cfg:       cfg,
		Keeper:    k,
		Bridge:    bridge.New(k, bridge.Options{Shards: cfg.Bridge.Shards, QueueSize: cfg.Bridge.QueueSize}),
		publisher: publisher,
		logCloser: logCloser,
		engines:   nopCloser{},
	}

	a.Logger.Info().
		Str("name", cfg.Name).
		Str("provider", cfg.Engine.Provider).
		Str("policy", cfg.Keeper.DuplicatePolicy).
		Msg("application created")
	return a, nil
}

// Start initializes the keeper with the configured engine and binds every
// listener. A bind failure is returned before anything serves.
func (a *Application) Start(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			a.closeListeners()
		}
	}()

	tpl, closer, err := BuildTemplate(ctx, a.Cfg)
	if err != nil {
		return err
	}
	a.engines = closer
	if err = a.Keeper.Initialize(tpl); err != nil {
		return err
	}

	if a.httpLis, err = net.Listen("tcp", a.Cfg.Endpoint); err != nil {
		return fmt.Errorf("listen %s: %w", a.Cfg.Endpoint, err)
	}
	a.httpServer = &http.Server{
		Handler:           httpapi.NewRouter(a.Cfg.AsrPrefix, a.Keeper),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if a.Cfg.GRPC.Enabled {
		if a.grpcLis, err = net.Listen("tcp", a.Cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("listen %s: %w", a.Cfg.GRPC.Addr, err)
		}
		a.grpcServer = grpcapi.New(a.Keeper)
		a.grpcServer.SetServing(a.Keeper.Initialized())
	}

	if a.Cfg.Metrics.Enabled {
		if a.obsLis, err = net.Listen("tcp", a.Cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("listen %s: %w", a.Cfg.Metrics.Addr, err)
		}
		a.obsServer = observability.NewServer(a.Cfg.Metrics.Addr, a.Keeper.Initialized)
	}

	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Str("endpoint", a.httpLis.Addr().String()).
		Str("prefix", a.Cfg.AsrPrefix).
		Msg("service starting")
	return nil
}

// Run serves until ctx is done or a listener fails, then stops the listeners
// and drains the frame bridge.
func (a *Application) Run(ctx context.Context) error {
	if a.httpServer == nil {
		return errors.New("application not started")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Bridge.Run(gctx) })

	g.Go(func() error {
		if err := a.httpServer.Serve(a.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.grpcServer != nil {
		g.Go(func() error {
			if err := a.grpcServer.Serve(a.grpcLis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	if a.obsServer != nil {
		g.Go(func() error { return a.obsServer.Serve(a.obsLis) })
	}

	g.Go(func() error {
		<-gctx.Done()
		a.stopListeners()
		return nil
	})

	return g.Wait()
}

func (a *Application) stopListeners() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.grpcServer != nil {
		a.grpcServer.Stop(ctx)
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("http server shutdown")
	}
	if a.obsServer != nil {
		if err := a.obsServer.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("observability server shutdown")
		}
	}
}

func (a *Application) closeListeners() {
	for _, l := range []net.Listener{a.httpLis, a.grpcLis, a.obsLis} {
		if l != nil {
			_ = l.Close()
		}
	}
	a.httpLis, a.grpcLis, a.obsLis = nil, nil, nil
	a.httpServer, a.grpcServer, a.obsServer = nil, nil, nil
}

// HTTPAddr returns the bound command endpoint address, empty before Start.
func (a *Application) HTTPAddr() string { return addr(a.httpLis) }

// GRPCAddr returns the bound frame ingress address, empty when disabled.
func (a *Application) GRPCAddr() string { return addr(a.grpcLis) }

// MetricsAddr returns the bound observability address, empty when disabled.
func (a *Application) MetricsAddr() string { return addr(a.obsLis) }

func addr(l net.Listener) string {
	if l == nil {
		return ""
	}
	return l.Addr().String()
}

// Shutdown stops every session and releases engine clients, the Kafka writer
// and the log file. Call it after Run returns.
func (a *Application) Shutdown() {
	a.Logger.Info().Int("sessions", a.Keeper.Len()).Msg("service shutting down")

	a.Keeper.Shutdown()
	if err := a.engines.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("close engine client")
	}
	if err := a.publisher.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("close kafka publisher")
	}
	_ = a.logCloser.Close()
}
