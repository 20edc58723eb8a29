package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/retry"
)

type gateway interface {
	GetOrderDetails(ctx context.Context, orderID uuid.UUID) (domain.OrderDetails, error)
}

type counter interface {
	Inc()
}

// RetryConfig bounds the retries of RetryingGateway.
type RetryConfig = retry.Config

// RetryingGateway retries transient gRPC failures of the wrapped gateway.
type RetryingGateway struct {
	next    gateway
	logger  logx.Logger
	retries counter
	runner  retry.Runner
}

// NewRetryingGateway returns nil when next is nil.
func NewRetryingGateway(next gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, runner: retry.Runner{Config: cfg}}
}

// GetOrderDetails calls the wrapped gateway, retrying retryable status codes.
func (g *RetryingGateway) GetOrderDetails(ctx context.Context, orderID uuid.UUID) (domain.OrderDetails, error) {
	var (
		ord     domain.OrderDetails
		attempt int
	)
	err := g.runner.Do(ctx, func() error {
		attempt++
		var err error
		ord, err = g.next.GetOrderDetails(ctx, orderID)
		if err != nil && !isRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, delay time.Duration) {
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("orders gateway retry",
			logx.String("method", "GetOrderDetails"),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
	})
	if err != nil {
		return domain.OrderDetails{}, err
	}
	return ord, nil
}

// isRetryable reports whether the gRPC status code is transient.
func isRetryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.ResourceExhausted,
		codes.Unavailable,
		codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}
