package app

import (
	"os"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
)

// NewLogger builds the JSON process logger at the configured level.
func NewLogger(cfg *config.Config) logx.Logger {
	return logx.New(os.Stdout, logx.Options{Level: cfg.LogLevel, Service: "courier-dispatch"})
}
