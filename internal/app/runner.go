package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/jobs"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/relay"
	"courier-dispatch/internal/telemetry"
	"courier-dispatch/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the dispatch API.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the API using the provided DI container and blocks until shutdown.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		log.Fatalf("run error: %v", err)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	var logger logx.Logger = logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

// Resources is what the API and the worker release on shutdown. Every field may be nil.
type Resources struct {
	dig.In

	Pool       *pgxpool.Pool
	Producer   *kafka.Producer
	Redis      *redis.Client
	OrdersConn *grpc.ClientConn
}

type apiIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Server    *http.Server
	Pprof     *http.Server `name:"pprof_server" optional:"true"`
	Hub       *hub.Hub
	Manager   *realtime.Manager
	Bridge    Bridge
	Gauges    *jobs.GaugeRefresher
	Resources Resources
}

// Bridge connects the local hub to the events topic in both directions and
// keeps the tracker in step with events from the other processes.
type Bridge struct {
	dig.In

	Relay   *relay.Relay
	Events  *kafka.Consumer    `name:"events_consumer" optional:"true"`
	Tracker *telemetry.Tracker `optional:"true"`
}

// start runs the bridge loops until ctx ends or h closes. The returned channel
// is closed once every loop has stopped, at once when none is configured.
func (b Bridge) start(ctx context.Context, h *hub.Hub, logger logx.Logger) <-chan struct{} {
	var g errgroup.Group
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("background loop stopped with error", logx.String("loop", name), logx.Err(err))
			}
			return nil
		})
	}
	if b.Relay != nil {
		run("relay", b.Relay.Run)
	}
	if b.Events != nil {
		run("events_consumer", b.Events.Run)
		if b.Tracker != nil && h != nil {
			run("tracker", func(ctx context.Context) error { return b.Tracker.Follow(ctx, h) })
		}
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	return done
}

func (b Bridge) close(logger logx.Logger) {
	if err := b.Events.Close(); err != nil {
		logger.Warn("events consumer close error", logx.Err(err))
	}
}

func run(container *dig.Container) error {
	return container.Invoke(apiRun)
}

func apiRun(in apiIn) error {
	ctx, logger := in.Ctx, in.Logger

	serveErr := make(chan error, 2)
	startServer(in.Server, "api", logger, serveErr)
	if in.Pprof != nil {
		startServer(in.Pprof, "pprof", logger, serveErr)
	}

	if in.Gauges != nil {
		if err := in.Gauges.Start(ctx); err != nil {
			logger.Warn("gauge refresher not started", logx.Err(err))
		}
	}
	bgCtx, stopBg := context.WithCancel(ctx)
	defer stopBg()
	bridgeDone := in.Bridge.start(bgCtx, in.Hub, logger)

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
		logger.Info("shutting down courier-dispatch")
	case err := <-serveErr:
		runErr = err
		logger.Error("server failed, shutting down", logx.Err(err))
	}

	gracefulShutdown(in.Server, logger, shutdownTimeout)
	if in.Pprof != nil {
		gracefulShutdown(in.Pprof, logger, time.Second)
	}

	in.Hub.Close()
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := in.Manager.Wait(waitCtx); err != nil {
		logger.Warn("live connections did not drain", logx.Err(err))
	}
	if in.Gauges != nil {
		in.Gauges.Stop()
	}
	stopBg()
	<-bridgeDone
	in.Bridge.close(logger)

	closeResources(in.Resources, logger)
	return runErr
}

func startServer(server *http.Server, name string, logger logx.Logger, errs chan<- error) {
	go func() {
		logger.Info("http server listening",
			logx.String("server", name),
			logx.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}

func closeResources(res Resources, logger logx.Logger) {
	if err := res.Producer.Close(); err != nil {
		logger.Warn("kafka producer close error", logx.Err(err))
	}
	if res.Redis != nil {
		if err := res.Redis.Close(); err != nil {
			logger.Warn("redis close error", logx.Err(err))
		}
	}
	if res.OrdersConn != nil {
		if err := res.OrdersConn.Close(); err != nil {
			logger.Warn("orders grpc close error", logx.Err(err))
		}
	}
	if res.Pool != nil {
		res.Pool.Close()
	}
}
