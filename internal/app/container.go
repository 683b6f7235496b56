package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"service-dispatch/internal/config"
	"service-dispatch/internal/gateway/route"
	weathergw "service-dispatch/internal/gateway/weather"
	"service-dispatch/internal/logx"
	"service-dispatch/internal/metrics"
	"service-dispatch/internal/notify"
	"service-dispatch/internal/repository"
	"service-dispatch/internal/service/assignment"
	"service-dispatch/internal/service/dispatch"
	"service-dispatch/internal/service/estimate"
	"service-dispatch/internal/service/lifecycle"
	"service-dispatch/internal/service/orders"
	"service-dispatch/internal/service/selector"
	"service-dispatch/internal/service/tracker"
	"service-dispatch/internal/service/weather"
	"service-dispatch/internal/store/redisstore"
	"service-dispatch/internal/transport/kafka"
)

type (
	dbConnectFunc    func(context.Context, logx.Logger, string, int, time.Duration) (*pgxpool.Pool, error)
	redisConnectFunc func(context.Context, config.Redis) (*redis.Client, error)
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect    dbConnectFunc
	redisConnect redisConnectFunc
	logFatalf    func(string, ...interface{})
	worker       bool
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:    connectDbWithRetry,
		redisConnect: newRedisClient,
		logFatalf:    log.Fatalf,
	}
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithRedisConnect sets the Redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
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

// Worker adds the Kafka consumer wiring.
func (b *ContainerBuilder) Worker() *ContainerBuilder {
	b.worker = true
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

	steps := []struct {
		name string
		fn   func() error
	}{
		{"core", func() error { return registerCore(container, ctx) }},
		{"DB", func() error { return registerDb(container, b.dbConnect) }},
		{"redis", func() error { return registerRedis(container, b.redisConnect) }},
		{"stores", func() error { return registerStores(container) }},
		{"gateways", func() error { return registerGateways(container) }},
		{"notify", func() error { return registerNotify(container) }},
		{"service", func() error { return registerDomainServices(container) }},
		{"http", func() error { return registerHTTP(container) }},
	}
	if b.worker {
		steps = append(steps, struct {
			name string
			fn   func() error
		}{"kafka", func() error { return registerKafka(container) }})
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return container, nil
}

// MustBuildContainer builds the container of the API process.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the container of the Kafka worker.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().Worker().MustBuild(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context) error {
	return provideAll(container,
		func() context.Context { return ctx },
		config.Load,
		NewLogger,
		provideRegistry,
		func(reg *prometheus.Registry) (*metrics.Set, error) { return metrics.NewSet(reg) },
	)
}

// provideRegistry gives every container its own registry so builds never collide.
func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger) (*pgxpool.Pool, error) {
		return dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
	}
	return provideAll(container, providerDB)
}

func registerRedis(container *dig.Container, redisConnect redisConnectFunc) error {
	return provideAll(container, func(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
		return redisConnect(ctx, cfg.Redis)
	})
}

func registerStores(container *dig.Container) error {
	return provideAll(container,
		repository.NewOrderRepo,
		repository.NewCourierRepo,
		repository.NewShopRepo,
		repository.NewCustomerLocationRepo,
		repository.NewLocationRepo,
		repository.NewPricingRepo,
		redisstore.NewClaimStore,
		redisstore.NewSignals,
		redisstore.NewThrottle,
		func(client *redis.Client, cfg *config.Config) *redisstore.LiveIndex {
			return redisstore.NewLiveIndex(client, cfg.Tracker.LocationTTL)
		},
	)
}

func registerGateways(container *dig.Container) error {
	return provideAll(container,
		func(cfg *config.Config, logger logx.Logger, m *metrics.Set) *route.RetryingGateway {
			ors := route.NewORSGateway(cfg.Route.BaseURL, cfg.Route.APIKey, cfg.Route.Timeout)
			return route.NewRetryingGateway(ors, logger, m.GatewayRetries, route.RetryConfig{
				MaxAttempts: cfg.Route.MaxAttempts,
				BaseDelay:   cfg.Route.BaseDelay,
				MaxDelay:    cfg.Route.MaxDelay,
			})
		},
		func(cfg *config.Config) *weathergw.Client {
			return weathergw.NewClient(cfg.Weather.BaseURL, cfg.Weather.APIKey, cfg.Route.Timeout)
		},
	)
}

// notifyCloser releases broker connections opened for notifications.
type notifyCloser func() error

type notifyOut struct {
	dig.Out

	Sink   notify.Sink
	Closer notifyCloser
}

// provideNotify always publishes to Redis, which feeds the websocket sessions.
// Kafka or AMQP are added on top when configured.
func provideNotify(cfg *config.Config, client *redis.Client) (notifyOut, error) {
	redisSink := notify.NewRedisSink(client)
	noop := notifyCloser(func() error { return nil })

	switch cfg.Notify.Backend {
	case config.NotifyKafka:
		producer, err := notify.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			return notifyOut{}, fmt.Errorf("kafka producer: %w", err)
		}
		k := notify.NewKafkaSink(producer, cfg.Kafka.NotifyTopic)
		return notifyOut{Sink: notify.Fanout{redisSink, k}, Closer: k.Close}, nil
	case config.NotifyAMQP:
		a, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return notifyOut{}, fmt.Errorf("amqp: %w", err)
		}
		return notifyOut{Sink: notify.Fanout{redisSink, a}, Closer: a.Close}, nil
	default:
		return notifyOut{Sink: redisSink, Closer: noop}, nil
	}
}

func registerNotify(container *dig.Container) error {
	return provideAll(container,
		provideNotify,
		notify.NewPublisher,
		notify.NewRedisFeed,
	)
}

type servicesIn struct {
	dig.In

	Cfg    *config.Config
	Logger logx.Logger
	Set    *metrics.Set

	Orders    *repository.OrderRepo
	Couriers  *repository.CourierRepo
	Shops     *repository.ShopRepo
	Customers *repository.CustomerLocationRepo
	Locations *repository.LocationRepo
	Pricing   *repository.PricingRepo

	Live      *redisstore.LiveIndex
	Claims    *redisstore.ClaimStore
	Signals   *redisstore.Signals
	Throttle  *redisstore.Throttle
	Publisher *notify.Publisher
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		func(in servicesIn, routes *route.RetryingGateway) *estimate.Service {
			return estimate.NewService(routes, in.Pricing, in.Cfg.Route.Timeout, in.Logger)
		},
		func(in servicesIn) *selector.Service {
			return selector.NewService(in.Live, in.Couriers, in.Locations, selector.Config{
				RadiusKm:      in.Cfg.Dispatch.RadiusKm,
				MaxCandidates: in.Cfg.Dispatch.MaxCandidates,
				LiveRecency:   in.Cfg.Dispatch.LiveRecency,
			}, in.Logger)
		},
		func(in servicesIn, quotes *estimate.Service) *assignment.Service {
			return assignment.NewService(assignment.Deps{
				Orders:    in.Orders,
				Couriers:  in.Couriers,
				Shops:     in.Shops,
				Customers: in.Customers,
				Positions: assignment.NewPositions(in.Live, in.Locations),
				Quoter:    quotes,
				Tx:        in.Orders,
				Claims:    in.Claims,
				Notifier:  in.Publisher,
				RacesLost: in.Set.ClaimRacesLost,
			}, in.Cfg.Dispatch.OperationTimeout, in.Logger)
		},
		func(in servicesIn, sel *selector.Service, assign *assignment.Service, quotes *estimate.Service) *dispatch.Service {
			return dispatch.NewService(dispatch.Deps{
				Orders:    in.Orders,
				Shops:     in.Shops,
				Customers: in.Customers,
				Selector:  sel,
				Finalizer: assign,
				Quoter:    quotes,
				Claims:    in.Claims,
				Signals:   in.Signals,
				Notifier:  in.Publisher,
				Outcomes:  in.Set.DispatchOutcomes,
				Offers:    in.Set.DispatchOffers,
			}, dispatch.Config{
				OfferWindow:      in.Cfg.Dispatch.OfferWindow,
				PollInterval:     in.Cfg.Dispatch.PollInterval,
				OperationTimeout: in.Cfg.Dispatch.OperationTimeout,
			}, in.Logger)
		},
		func(in servicesIn) *lifecycle.Service {
			return lifecycle.NewService(in.Orders, in.Claims, in.Publisher, in.Cfg.Dispatch.OperationTimeout, in.Logger)
		},
		func(in servicesIn, quotes *estimate.Service) *tracker.Service {
			return tracker.NewService(tracker.Deps{
				Couriers:  in.Couriers,
				Orders:    in.Orders,
				Shops:     in.Shops,
				Customers: in.Customers,
				Live:      in.Live,
				Durable:   in.Locations,
				Throttle:  in.Throttle,
				Estimator: quotes,
				Notifier:  in.Publisher,
				Flushed:   in.Set.LocationsFlushed,
			}, tracker.Config{
				LocationTTL:      in.Cfg.Tracker.LocationTTL,
				LocationThrottle: in.Cfg.Tracker.LocationThrottle,
				DurationThrottle: in.Cfg.Tracker.DurationThrottle,
				MinDisplacementM: in.Cfg.Tracker.MinDisplacementM,
				OperationTimeout: in.Cfg.Dispatch.OperationTimeout,
			}, in.Logger)
		},
		func(in servicesIn, client *weathergw.Client) *weather.Service {
			return weather.NewService(client, in.Pricing, in.Cfg.Weather.City, 0, in.Logger)
		},
	)
}

func registerKafka(container *dig.Container) error {
	return provideAll(container,
		func(d *dispatch.Service, l *lifecycle.Service, logger logx.Logger) *orders.Processor {
			return orders.NewProcessor(d, l, logger)
		},
		func(cfg *config.Config, logger logx.Logger, p *orders.Processor) (*kafka.Consumer, error) {
			return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.DispatchTopic,
				makeOrdersKafka(p, kafkaHandleTimeout))
		},
	)
}
