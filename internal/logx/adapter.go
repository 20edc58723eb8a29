package logx

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"
)

// levelOff is above every level the dispatcher emits.
const levelOff = slog.Level(math.MaxInt32)

var nop Logger = &slogLogger{l: slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: levelOff}))}

// Nop returns a Logger that drops every entry before formatting it.
func Nop() Logger { return nop }

// Options configures a JSON logger built by New.
type Options struct {
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Service is attached to every entry when set.
	Service string
}

// New returns a JSON Logger writing to w.
func New(w io.Writer, opts Options) Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(opts.Level),
		ReplaceAttr: durationAsString,
	})
	l := slog.New(h)
	if opts.Service != "" {
		l = l.With(slog.String("service", opts.Service))
	}
	return &slogLogger{l: l}
}

// NewSlogAdapter wraps an existing *slog.Logger.
func NewSlogAdapter(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

// ParseLevel maps a configured level name onto slog. Unknown names fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s *slogLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	return &slogLogger{l: slog.New(s.l.Handler().WithAttrs(attrs(fields)))}
}

func (s *slogLogger) Sync() error { return nil }

func (s *slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, attrs(fields)...)
}

func attrs(fields []Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, attr(f))
	}
	return out
}

func attr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, v)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.Duration(f.Key, v)
	case error:
		return slog.String(f.Key, v.Error())
	default:
		return slog.Any(f.Key, v)
	}
}

// durationAsString renders durations as "1.5s" instead of nanoseconds.
func durationAsString(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.String(a.Key, a.Value.Duration().String())
	}
	return a
}
