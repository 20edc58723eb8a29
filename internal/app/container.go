package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"courier-dispatch/internal/cache/presence"
	"courier-dispatch/internal/config"
	ordersgw "courier-dispatch/internal/gateway/orders"
	"courier-dispatch/internal/hub"
	"courier-dispatch/internal/jobs"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ratelimit"
	"courier-dispatch/internal/realtime"
	"courier-dispatch/internal/relay"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/retry"
	"courier-dispatch/internal/service/analytics"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/emergency"
	"courier-dispatch/internal/service/matcher"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/service/status"
	"courier-dispatch/internal/telemetry"
	"courier-dispatch/internal/transport/kafka"
)

const (
	dbConnectRetries = 10
	dbConnectDelay   = time.Second
	kafkaClientID    = "courier-dispatch"
)

type migrateFunc func(ctx context.Context, db *pgxpool.Pool) error

// instanceID names this process on the events topic.
type instanceID string

func newInstanceID() instanceID { return instanceID(uuid.NewString()) }

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	loadConfig func() (*config.Config, error)
	dbConnect  dbConnectFunc
	migrate    migrateFunc
	logFatalf  func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		loadConfig: config.Load,
		dbConnect:  connectDbWithRetry,
		migrate:    repository.Migrate,
		logFatalf:  log.Fatalf,
	}
}

// WithConfigLoader sets the configuration source
func (b *ContainerBuilder) WithConfigLoader(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithMigrate sets the schema migration function
func (b *ContainerBuilder) WithMigrate(fn migrateFunc) *ContainerBuilder {
	if fn != nil {
		b.migrate = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds and returns a new dig container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect, b.migrate); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerInfra(container); err != nil {
		return nil, fmt.Errorf("infra: %w", err)
	}
	if err := registerDomainServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds and returns a new dig container. The API and the
// worker share it; dig only constructs what each runner asks for.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		NewLogger,
		provideMetrics,
		newInstanceID,
	)
}

type metricsOut struct {
	dig.Out

	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
}

func provideMetrics() (metricsOut, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return metricsOut{}, fmt.Errorf("register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return metricsOut{}, fmt.Errorf("register process collector: %w", err)
	}
	m, err := telemetry.NewMetrics(reg)
	if err != nil {
		return metricsOut{}, fmt.Errorf("register dispatch metrics: %w", err)
	}
	return metricsOut{Registry: reg, Metrics: m}, nil
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc, migrate migrateFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		pool, err := dbConnect(ctx, logger, cfg.DB, dbConnectRetries, dbConnectDelay)
		if err != nil {
			return nil, err
		}
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pool, nil
	}
	return provideAll(container,
		providerDB,
		repository.NewCourierRepo,
		repository.NewAssignmentRepo,
		repository.NewEmergencyRepo,
		repository.NewOrderRepo,
	)
}

func registerInfra(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, logger logx.Logger, m *telemetry.Metrics) *hub.Hub {
			return hub.New(logger, hub.WithBuffer(cfg.Hub.Buffer), hub.WithDropCounter(m.HubDropped()))
		},
		provideRedis,
		providePresence,
		func(cfg *config.Config, logger logx.Logger) (*kafka.Producer, error) {
			return kafka.NewProducer(logger, cfg.Kafka.Brokers, kafkaClientID)
		},
		provideOrdersConn,
		provideOrderLookup,
		provideRelay,
		func(id instanceID, logger logx.Logger, h *hub.Hub) *relay.Inbound {
			return relay.NewInbound(string(id), h, logger)
		},
		provideEventsConsumer,
	)
}

func provideRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return presence.NewClient(cfg.Redis.Addr)
}

func providePresence(cfg *config.Config, client *redis.Client, couriers *repository.CourierRepo) *presence.Cache {
	if client == nil {
		return nil
	}
	return presence.New(client, cfg.Redis.TTL, couriers)
}

func provideOrdersConn(cfg *config.Config) (*grpc.ClientConn, error) {
	if cfg.OrdersGateway.Addr == "" {
		return nil, nil
	}
	conn, err := grpc.NewClient(cfg.OrdersGateway.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("orders grpc client: %w", err)
	}
	return conn, nil
}

// provideOrderLookup prefers the orders service and falls back to the local order table.
func provideOrderLookup(
	cfg *config.Config,
	logger logx.Logger,
	m *telemetry.Metrics,
	conn *grpc.ClientConn,
	local *repository.OrderRepo,
) dispatch.OrderLookup {
	if conn == nil {
		return local
	}
	gw := cfg.OrdersGateway
	return ordersgw.NewRetryingGateway(ordersgw.NewGRPCGateway(conn), logger, m.GatewayRetries(), ordersgw.RetryConfig{
		MaxAttempts: gw.MaxAttempts,
		BaseDelay:   gw.BaseDelay,
		MaxDelay:    gw.MaxDelay,
	})
}

// provideRelay is nil without a producer or an events topic. Records carry
// the instance id so this process can skip them when they come back.
func provideRelay(cfg *config.Config, logger logx.Logger, id instanceID, h *hub.Hub, p *kafka.Producer) *relay.Relay {
	if p == nil || cfg.Kafka.EventsTopic == "" {
		return nil
	}
	origin := kafka.Header{Key: kafka.OriginHeader, Value: string(id)}
	return relay.New(h, p.Topic(cfg.Kafka.EventsTopic, origin), cfg.Dispatch.OperationTimeout, logger)
}

type eventsConsumerOut struct {
	dig.Out

	Consumer *kafka.Consumer `name:"events_consumer"`
}

// provideEventsConsumer reads the events topic back into the local hub. Every
// process joins its own group so each one sees every record, starting from
// the newest offset.
func provideEventsConsumer(cfg *config.Config, logger logx.Logger, id instanceID, in *relay.Inbound) (eventsConsumerOut, error) {
	k := cfg.Kafka
	if k.EventsTopic == "" || k.EventsGroup == "" {
		return eventsConsumerOut{}, nil
	}
	c, err := kafka.NewConsumer(logger, k.Brokers, k.EventsGroup+"-"+string(id), k.EventsTopic,
		makeEventsKafka(in, cfg.Dispatch.OperationTimeout),
		kafka.WithInitialOffset(sarama.OffsetNewest),
	)
	if err != nil {
		return eventsConsumerOut{}, fmt.Errorf("events consumer: %w", err)
	}
	return eventsConsumerOut{Consumer: c}, nil
}

type engineIn struct {
	dig.In

	Cfg         *config.Config
	Logger      logx.Logger
	Assignments *repository.AssignmentRepo
	Couriers    *repository.CourierRepo
	Orders      dispatch.OrderLookup
	Matcher     *matcher.Matcher
	Hub         *hub.Hub
	Tracker     *telemetry.Tracker
}

type courierIn struct {
	dig.In

	Cfg      *config.Config
	Logger   logx.Logger
	Repo     *repository.CourierRepo
	Matcher  *matcher.Matcher
	Presence *presence.Cache
	Hub      *hub.Hub
	Metrics  *telemetry.Metrics
}

type emergencyIn struct {
	dig.In

	Cfg      *config.Config
	Logger   logx.Logger
	Store    *repository.EmergencyRepo
	Hub      *hub.Hub
	Producer *kafka.Producer
	Metrics  *telemetry.Metrics
}

type managerIn struct {
	dig.In

	Cfg       *config.Config
	Logger    logx.Logger
	Hub       *hub.Hub
	Emergency *emergency.Service
	Presence  *presence.Cache
	Metrics   *telemetry.Metrics
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		func(repo *repository.CourierRepo, cfg *config.Config) *matcher.Matcher {
			return matcher.New(repo, cfg.Dispatch.CandidateLimit)
		},
		telemetry.NewTracker,
		newEngine,
		func(cfg *config.Config, logger logx.Logger, repo *repository.AssignmentRepo, h *hub.Hub, tr *telemetry.Tracker) *status.Machine {
			return status.NewMachine(repo, h, tr, cfg.Dispatch.OperationTimeout, logger)
		},
		newCourierService,
		newEmergencyService,
		newManager,
		func(cfg *config.Config, repo *repository.AssignmentRepo, mgr *realtime.Manager) *analytics.Service {
			return analytics.NewService(repo, mgr, cfg.Dispatch.OperationTimeout)
		},
		func(cfg *config.Config, logger logx.Logger, couriers *repository.CourierRepo, pending *repository.AssignmentRepo, m *telemetry.Metrics) *jobs.GaugeRefresher {
			return jobs.NewGaugeRefresher(couriers, pending, m, cfg.Jobs.GaugeSpec, cfg.Dispatch.OperationTimeout, logger)
		},
	)
}

func newEngine(in engineIn) *dispatch.Engine {
	return dispatch.NewEngine(dispatch.Deps{
		Tx:       in.Assignments,
		Orders:   in.Orders,
		Couriers: in.Couriers,
		Finder:   in.Matcher,
		Events:   in.Hub,
		Observer: in.Tracker,
		Logger:   in.Logger,
	}, dispatch.Config{
		DefaultRadiusKm:  in.Cfg.Dispatch.RadiusKm,
		OperationTimeout: in.Cfg.Dispatch.OperationTimeout,
	})
}

func newCourierService(in courierIn) *courier.Service {
	d := courier.Deps{
		Repo:     in.Repo,
		Finder:   in.Matcher,
		Events:   in.Hub,
		Observer: in.Metrics,
		Logger:   in.Logger,
	}
	if in.Presence != nil {
		d.Presence = in.Presence
	}
	return courier.NewService(d, in.Cfg.Dispatch.OperationTimeout)
}

func newEmergencyService(in emergencyIn) *emergency.Service {
	d := emergency.Deps{
		Store:    in.Store,
		Events:   in.Hub,
		Observer: in.Metrics,
		Logger:   in.Logger,
	}
	if in.Producer != nil && in.Cfg.Kafka.EmergencyTopic != "" {
		d.Escalator = in.Producer.Topic(in.Cfg.Kafka.EmergencyTopic)
	}
	return emergency.NewService(d, retry.Config{})
}

func newManager(in managerIn) *realtime.Manager {
	rt := in.Cfg.Realtime
	d := realtime.Deps{
		Bus:       in.Hub,
		Emergency: in.Emergency,
		Observer:  in.Metrics,
		Logger:    in.Logger,
	}
	if in.Presence != nil {
		d.Presence = in.Presence
	}
	if rt.MessageRate > 0 {
		d.Limiter = ratelimit.NewTokenBucket(ratelimit.RealClock{}, ratelimit.Config{
			Rate:  rt.MessageRate,
			Burst: rt.MessageBurst,
		})
	}
	return realtime.NewManager(d, realtime.Config{
		HeartbeatTimeout: rt.HeartbeatTimeout,
		WriteTimeout:     rt.WriteTimeout,
	})
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(logger logx.Logger, engine *dispatch.Engine, machine *status.Machine) *orders.Processor {
			return orders.NewProcessor(engine, machine, logger)
		},
		func(cfg *config.Config, logger logx.Logger, p *orders.Processor) (*kafka.Consumer, error) {
			k := cfg.Kafka
			return kafka.NewConsumer(logger, k.Brokers, k.OrdersGroup, k.OrdersTopic,
				kafka.OrderEvents(makeOrdersKafka(p, cfg.Dispatch.OperationTimeout)))
		},
		provideWorkerMetrics,
	)
}

type serversOut struct {
	dig.Out

	Main  *http.Server
	Pprof *http.Server `name:"pprof_server"`
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		provideHandlers,
		newRateLimiter,
		newRateLimitMiddleware,
		newObservability,
		newRouter,
		provideServers,
	)
}

func mainAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
