// Package jobs holds the scheduled background tasks of the worker.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"

	"courier-dispatch/internal/logx"
)

// DefaultGaugeSpec refreshes gauges every 15 seconds.
const DefaultGaugeSpec = "*/15 * * * * *"

// CourierCounts reports active and available couriers.
type CourierCounts interface {
	Gauges(ctx context.Context) (active, available int64, err error)
}

// PendingCounts reports non-terminal assignments.
type PendingCounts interface {
	CountPending(ctx context.Context) (int64, error)
}

// GaugeSink receives refreshed values.
type GaugeSink interface {
	SetCourierGauges(active, available int64)
	SetPendingAssignments(n int64)
}

// GaugeRefresher periodically copies store counts into gauges.
type GaugeRefresher struct {
	couriers CourierCounts
	pending  PendingCounts
	sink     GaugeSink
	spec     string
	timeout  time.Duration
	cron     *cron.Cron
	logger   logx.Logger
}

// NewGaugeRefresher creates the job. spec is a six-field cron expression.
func NewGaugeRefresher(couriers CourierCounts, pending PendingCounts, sink GaugeSink, spec string, timeout time.Duration, logger logx.Logger) *GaugeRefresher {
	if spec == "" {
		spec = DefaultGaugeSpec
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &GaugeRefresher{
		couriers: couriers,
		pending:  pending,
		sink:     sink,
		spec:     spec,
		timeout:  timeout,
		cron:     cron.New(cron.WithSeconds()),
		logger:   logger.With(logx.String("component", "gauge_refresher")),
	}
}

// Refresh reads both counts and updates the sink. A failed read leaves its gauges untouched.
func (j *GaugeRefresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var errs []error
	active, available, err := j.couriers.Gauges(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		j.sink.SetCourierGauges(active, available)
	}

	n, err := j.pending.CountPending(ctx)
	if err != nil {
		errs = append(errs, err)
	} else {
		j.sink.SetPendingAssignments(n)
	}
	return errors.Join(errs...)
}

// Start schedules the refresh and runs it once immediately.
func (j *GaugeRefresher) Start(ctx context.Context) error {
	run := func() {
		if err := j.Refresh(ctx); err != nil {
			j.logger.Warn("gauge refresh failed", logx.Err(err))
		}
	}
	if _, err := j.cron.AddFunc(j.spec, run); err != nil {
		return err
	}
	run()
	j.cron.Start()
	j.logger.Info("gauge refresher started", logx.String("spec", j.spec))
	return nil
}

// Stop stops the schedule and waits for a running refresh.
func (j *GaugeRefresher) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info("gauge refresher stopped")
}
