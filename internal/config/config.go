package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.yaml.in/yaml/v4"
)

// Config stores the settings of both binaries.
type Config struct {
	Port          int           `yaml:"port"`
	LogLevel      string        `yaml:"log_level"`
	DB            DB            `yaml:"db"`
	Pprof         PprofConfig   `yaml:"pprof"`
	RateLimit     RateLimit     `yaml:"rate_limit"`
	Dispatch      Dispatch      `yaml:"dispatch"`
	Hub           Hub           `yaml:"hub"`
	Realtime      Realtime      `yaml:"realtime"`
	Redis         Redis         `yaml:"redis"`
	Kafka         Kafka         `yaml:"kafka"`
	OrdersGateway OrdersGateway `yaml:"orders_gateway"`
	Jobs          Jobs          `yaml:"jobs"`
	Worker        Worker        `yaml:"worker"`
}

// DB stores postgres connection settings.
type DB struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Pass     string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
}

// DSN returns the postgres connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// PprofConfig stores the debug server settings.
type PprofConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	User    string `yaml:"user"`
	Pass    string `yaml:"password"`
}

// RateLimit stores the per-client HTTP limiter settings.
type RateLimit struct {
	Enabled    bool    `yaml:"enabled"`
	Rate       float64 `yaml:"rate"`
	Burst      int     `yaml:"burst"`
	MaxBuckets int     `yaml:"max_buckets"`
}

// Dispatch stores assignment engine settings.
type Dispatch struct {
	RadiusKm         float64       `yaml:"radius_km"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	CandidateLimit   int           `yaml:"candidate_limit"`
}

// Hub stores event bus settings.
type Hub struct {
	Buffer int `yaml:"buffer"`
}

// Realtime stores live connection settings.
// MessageRate is the number of client frames allowed per second, MessageBurst the bucket size.
type Realtime struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MessageRate      float64       `yaml:"message_rate"`
	MessageBurst     int           `yaml:"message_burst"`
}

// Redis stores the presence cache settings. An empty Addr disables the cache.
type Redis struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

// Kafka stores broker and topic settings. No brokers disables Kafka.
// EventsGroup prefixes the per-process consumer group that reads EventsTopic back.
type Kafka struct {
	Brokers        []string `yaml:"brokers"`
	OrdersTopic    string   `yaml:"orders_topic"`
	OrdersGroup    string   `yaml:"orders_group"`
	EventsTopic    string   `yaml:"events_topic"`
	EventsGroup    string   `yaml:"events_group"`
	EmergencyTopic string   `yaml:"emergency_topic"`
}

// Enabled reports whether any broker is configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// OrdersGateway stores the remote order service settings. An empty Addr
// makes dispatch read orders from the local orders table.
type OrdersGateway struct {
	Addr        string        `yaml:"addr"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// Jobs stores the cron schedules of the worker.
type Jobs struct {
	GaugeSpec string `yaml:"gauge_spec"`
}

// Worker stores settings of the order-event worker. An empty MetricsAddr
// disables its metrics listener.
type Worker struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Load reads configuration from the process flags.
func Load() (*Config, error) {
	return LoadFrom(pflag.CommandLine, os.Args[1:])
}

// LoadFrom reads configuration in order: YAML file (CONFIG_FILE) → .env (if present) → environment → flags.
func LoadFrom(fs *pflag.FlagSet, args []string) (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := readYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&cfg.Pprof.Enabled, "pprof", cfg.Pprof.Enabled, "serve pprof on the debug address")
	fs.StringSliceVar(&cfg.Kafka.Brokers, "kafka-brokers", cfg.Kafka.Brokers, "kafka bootstrap brokers")
	fs.StringVar(&cfg.OrdersGateway.Addr, "orders-addr", cfg.OrdersGateway.Addr, "orders gRPC service address")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config file: %w", err)
	}
	return nil
}

// Validate checks ranges that defaults cannot repair.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if p, err := strconv.Atoi(c.DB.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("invalid postgres port: %q", c.DB.Port)
	}
	if c.Dispatch.RadiusKm <= 0 {
		return fmt.Errorf("invalid dispatch radius: %v", c.Dispatch.RadiusKm)
	}
	if c.Dispatch.CandidateLimit <= 0 {
		return fmt.Errorf("invalid candidate limit: %d", c.Dispatch.CandidateLimit)
	}
	if c.RateLimit.Enabled && (c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid rate limit: rate=%v burst=%d", c.RateLimit.Rate, c.RateLimit.Burst)
	}
	if c.Realtime.MessageRate < 0 || c.Realtime.MessageBurst < 0 {
		return fmt.Errorf("invalid realtime message rate: %v/%d", c.Realtime.MessageRate, c.Realtime.MessageBurst)
	}
	if c.Kafka.Enabled() && c.Kafka.OrdersTopic == "" {
		return fmt.Errorf("kafka brokers set without orders topic")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs envErrors

	cfg.Port = errs.int("PORT", cfg.Port)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	cfg.DB.Host = envString("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = envString("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envString("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envString("POSTGRES_DB", cfg.DB.Name)
	cfg.DB.MaxConns = int32(errs.int("POSTGRES_MAX_CONNS", int(cfg.DB.MaxConns)))

	cfg.Pprof.Enabled = errs.bool("PPROF_ENABLED", cfg.Pprof.Enabled)
	cfg.Pprof.Addr = envString("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = envString("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envString("PPROF_PASSWORD", cfg.Pprof.Pass)

	cfg.RateLimit.Enabled = errs.bool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = errs.float("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = errs.int("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.MaxBuckets = errs.int("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)

	cfg.Dispatch.RadiusKm = errs.float("DISPATCH_RADIUS_KM", cfg.Dispatch.RadiusKm)
	cfg.Dispatch.OperationTimeout = errs.duration("DISPATCH_TIMEOUT", cfg.Dispatch.OperationTimeout)
	cfg.Dispatch.CandidateLimit = errs.int("DISPATCH_CANDIDATE_LIMIT", cfg.Dispatch.CandidateLimit)

	cfg.Hub.Buffer = errs.int("HUB_BUFFER", cfg.Hub.Buffer)

	cfg.Realtime.HeartbeatTimeout = errs.duration("REALTIME_HEARTBEAT_TIMEOUT", cfg.Realtime.HeartbeatTimeout)
	cfg.Realtime.WriteTimeout = errs.duration("REALTIME_WRITE_TIMEOUT", cfg.Realtime.WriteTimeout)
	cfg.Realtime.MessageRate = errs.float("REALTIME_MESSAGE_RATE", cfg.Realtime.MessageRate)
	cfg.Realtime.MessageBurst = errs.int("REALTIME_MESSAGE_BURST", cfg.Realtime.MessageBurst)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.TTL = errs.duration("REDIS_TTL", cfg.Redis.TTL)

	cfg.Kafka.Brokers = envList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.OrdersTopic = envString("KAFKA_ORDERS_TOPIC", cfg.Kafka.OrdersTopic)
	cfg.Kafka.OrdersGroup = envString("KAFKA_ORDERS_GROUP", cfg.Kafka.OrdersGroup)
	cfg.Kafka.EventsTopic = envString("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.EventsGroup = envString("KAFKA_EVENTS_GROUP", cfg.Kafka.EventsGroup)
	cfg.Kafka.EmergencyTopic = envString("KAFKA_EMERGENCY_TOPIC", cfg.Kafka.EmergencyTopic)

	cfg.OrdersGateway.Addr = envString("ORDERS_GRPC_ADDR", cfg.OrdersGateway.Addr)
	cfg.OrdersGateway.MaxAttempts = errs.int("ORDERS_RETRY_ATTEMPTS", cfg.OrdersGateway.MaxAttempts)
	cfg.OrdersGateway.BaseDelay = errs.duration("ORDERS_RETRY_BASE_DELAY", cfg.OrdersGateway.BaseDelay)
	cfg.OrdersGateway.MaxDelay = errs.duration("ORDERS_RETRY_MAX_DELAY", cfg.OrdersGateway.MaxDelay)

	cfg.Jobs.GaugeSpec = envString("JOBS_GAUGE_SPEC", cfg.Jobs.GaugeSpec)

	cfg.Worker.MetricsAddr = envString("WORKER_METRICS_ADDR", cfg.Worker.MetricsAddr)

	return errs.err()
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envErrors keeps the first parse error so applyEnv reads like a flat list.
type envErrors struct{ first error }

func (e *envErrors) fail(key, v string, err error) {
	if e.first == nil {
		e.first = fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
}

func (e *envErrors) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *envErrors) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *envErrors) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *envErrors) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *envErrors) err() error { return e.first }
