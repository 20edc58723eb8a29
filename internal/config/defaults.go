package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host:     "127.0.0.1",
	Port:     "5432",
	User:     "myuser",
	Pass:     "mypassword",
	Name:     "dispatch",
	MaxConns: 10,
}

var defaultDispatch = Dispatch{
	RadiusKm:         10,
	OperationTimeout: 5 * time.Second,
	CandidateLimit:   10,
}

var defaultRealtime = Realtime{
	HeartbeatTimeout: 60 * time.Second,
	WriteTimeout:     10 * time.Second,
	MessageRate:      10,
	MessageBurst:     20,
}

var defaultKafka = Kafka{
	OrdersTopic:    "orders.events",
	OrdersGroup:    "dispatch-worker",
	EventsTopic:    "dispatch.events",
	EventsGroup:    "dispatch-events",
	EmergencyTopic: "dispatch.emergency",
}

var defaultOrdersGateway = OrdersGateway{
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    time.Second,
}

// Defaults returns a fully populated configuration with every default applied.
func Defaults() *Config {
	return &Config{
		Port:     defaultPort,
		LogLevel: "info",
		DB:       defaultDB,
		Pprof:    PprofConfig{Addr: "127.0.0.1:6060"},
		RateLimit: RateLimit{
			Rate:       50,
			Burst:      100,
			MaxBuckets: 10000,
		},
		Dispatch:      defaultDispatch,
		Hub:           Hub{Buffer: 256},
		Realtime:      defaultRealtime,
		Redis:         Redis{TTL: 30 * time.Minute},
		Kafka:         DefaultKafka(),
		OrdersGateway: defaultOrdersGateway,
		Jobs:          Jobs{GaugeSpec: "*/15 * * * * *"},
		Worker:        Worker{MetricsAddr: ":9090"},
	}
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default assignment engine settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultKafka returns the default topics with no brokers.
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultOrdersGateway returns the default orders gateway settings.
func DefaultOrdersGateway() OrdersGateway {
	return defaultOrdersGateway
}
