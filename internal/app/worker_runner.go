package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/dig"

	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/transport/kafka"
)

// WorkerRunner consumes order events and dispatches them.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun starts the worker using the provided DI container
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Consumer  *kafka.Consumer
	Hub       *hub.Hub
	Bridge    Bridge
	Metrics   *http.Server `name:"worker_metrics" optional:"true"`
	Resources Resources
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

// workerRun consumes until ctx ends or the metrics listener fails. Events
// raised while dispatching leave this process through the bridge.
func workerRun(in workerIn) error {
	if in.Consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	logger := in.Logger

	ctx, stop := context.WithCancel(in.Ctx)
	defer stop()
	bridgeDone := in.Bridge.start(ctx, in.Hub, logger)

	serveErr := make(chan error, 1)
	if in.Metrics != nil {
		startServer(in.Metrics, "worker metrics", logger, serveErr)
	}
	consumed := make(chan error, 1)
	go func() { consumed <- in.Consumer.Run(ctx) }()

	logger.Info("dispatch worker started")
	var err error
	select {
	case err = <-consumed:
	case err = <-serveErr:
		logger.Error("worker metrics server failed, shutting down", logx.Err(err))
		stop()
		<-consumed
	}

	stop()
	closeWorker(in, bridgeDone)
	return err
}

func closeWorker(in workerIn, bridgeDone <-chan struct{}) {
	if in.Metrics != nil {
		gracefulShutdown(in.Metrics, in.Logger, time.Second)
	}
	if err := in.Consumer.Close(); err != nil {
		in.Logger.Error("kafka close error", logx.Err(err))
	}
	if in.Hub != nil {
		in.Hub.Close()
	}
	<-bridgeDone
	in.Bridge.close(in.Logger)
	closeResources(in.Resources, in.Logger)
	in.Logger.Info("dispatch worker stopped")
}
