package di

import (
	"context"
	"fmt"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/domain/repository"
	domsvc "SentiTrade/internal/domain/service"
	"SentiTrade/internal/handler/api"
	mid "SentiTrade/internal/middleware"
	internalrepo "SentiTrade/internal/repository"
	"SentiTrade/internal/service/broker"
	icache "SentiTrade/internal/service/cache"
	"SentiTrade/internal/service/finnhub"
	"SentiTrade/internal/service/ratelimit"
	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/cache"
	pkgch "SentiTrade/pkg/clickhouse"
	"SentiTrade/pkg/config"
	xhttp "SentiTrade/pkg/http"
	pkgkafka "SentiTrade/pkg/kafka"
	applogger "SentiTrade/pkg/logger"
	"SentiTrade/pkg/metrics"
	pkgpg "SentiTrade/pkg/postgres"
	"SentiTrade/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvidePostgresClient connects and migrates Postgres when it backs storage.
func ProvidePostgresClient(cfg *config.Config) (*pkgpg.Client, error) {
	if cfg.Storage.Type != "postgres" {
		return nil, nil
	}
	client, err := pkgpg.NewClient(
		pkgpg.WithAddr(cfg.Postgres.Host, cfg.Postgres.Port),
		pkgpg.WithDatabase(cfg.Postgres.Database),
		pkgpg.WithCredentials(cfg.Postgres.User, cfg.Postgres.Password),
		pkgpg.WithSSLMode(cfg.Postgres.SSLMode),
		pkgpg.WithPool(cfg.Postgres.MaxConns, cfg.Postgres.MaxConns/2, time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	if cfg.Postgres.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.Migrate(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return client, nil
}

// ProvideRedisCache connects to Redis when enabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.PoolSize/2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisDialTimeout(cfg.Redis.DialTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache returns Redis when configured and an in-process cache otherwise.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc != nil {
		return rc
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(1000), cache.WithMemoryCleanup(time.Minute))
}

// ProvideClickHouseClient creates a ClickHouse client and the snapshot table.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SnapshotSchema); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideSentimentStore keeps the hot window in Redis when available.
func ProvideSentimentStore(cfg *config.Config, rc *cache.RedisCache) repository.SentimentStore {
	if rc != nil {
		return internalrepo.NewRedisSentimentStore(rc.Client(), cfg.Bot.Window)
	}
	return internalrepo.NewMemorySentimentStore(cfg.Bot.Window)
}

// ProvideObservationArchive archives to Postgres. Without Postgres the
// in-memory store answers activity queries itself; a Redis window has no
// archive.
func ProvideObservationArchive(pg *pkgpg.Client, store repository.SentimentStore) repository.ObservationArchive {
	if pg != nil {
		return internalrepo.NewPostgresObservationArchive(pg.DB())
	}
	if mem, ok := store.(*internalrepo.MemorySentimentStore); ok {
		return mem
	}
	return nil
}

// ProvideSnapshotStore writes sentiment snapshots to ClickHouse when enabled.
func ProvideSnapshotStore(ch *pkgch.Client, log *applogger.Logger) repository.SnapshotStore {
	if ch != nil {
		return internalrepo.NewClickHouseSnapshotStore(ch, log)
	}
	return internalrepo.NewMemorySnapshotStore(1000)
}

func ProvidePositionRepository(pg *pkgpg.Client) repository.PositionRepository {
	if pg != nil {
		return internalrepo.NewPostgresPositionRepository(pg.DB())
	}
	return internalrepo.NewMemoryPositionRepository()
}

func ProvideTradeRepository(pg *pkgpg.Client) repository.TradeRepository {
	if pg != nil {
		return internalrepo.NewPostgresTradeRepository(pg.DB())
	}
	return internalrepo.NewMemoryTradeRepository()
}

// ProvideConfigSource reads symbol configs from a YAML file or Postgres.
func ProvideConfigSource(cfg *config.Config, pg *pkgpg.Client) (repository.ConfigSource, error) {
	switch cfg.ConfigSource.Type {
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("config source postgres: storage is not postgres")
		}
		return internalrepo.NewPostgresConfigSource(pg.DB()), nil
	default:
		return internalrepo.NewFileConfigSource(cfg.ConfigSource.Path, symbolDefaults(cfg)), nil
	}
}

func symbolDefaults(cfg *config.Config) models.SymbolConfig {
	d := models.SymbolConfig{
		SentimentThreshold: cfg.Bot.Defaults.SentimentThreshold,
		MaxPositionSize:    cfg.Bot.Defaults.MaxPositionSize,
		IsActive:           true,
	}
	for name, w := range cfg.Bot.Defaults.Weights {
		if s, err := models.ParseSource(name); err == nil {
			d.Weights[s] = w
		}
	}
	return d
}

// ProvideTradePublisher publishes trade events to Kafka when enabled.
func ProvideTradePublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.TradePublisher {
	if producer == nil {
		return internalrepo.NoopTradePublisher{}
	}
	return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.TradesTopic)
}

func ProvidePriceBook(cfg *config.Config) *icache.PriceBook {
	return icache.NewPriceBook(cfg.Prices.TTL)
}

func ProvidePriceSource(book *icache.PriceBook) domsvc.PriceSource {
	return book
}

// ProvideBroker selects the execution venue.
func ProvideBroker(cfg *config.Config, prices domsvc.PriceSource) domsvc.Broker {
	if cfg.Broker.Type == "alpaca" {
		return broker.NewAlpacaClient(cfg.Broker.BaseURL, cfg.Broker.KeyID, cfg.Broker.Secret,
			broker.WithRateLimit(cfg.Broker.RateLimit, cfg.Broker.Burst),
			broker.WithRequestTimeout(cfg.Broker.Timeout),
		)
	}
	return broker.NewPaperBroker(prices)
}

// ProvidePriceCollector streams Finnhub prints into the price book.
func ProvidePriceCollector(cfg *config.Config, book *icache.PriceBook, m repository.Metrics, log *applogger.Logger) *usecase.PriceCollector {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	stream := finnhub.New(finnhub.Config{
		APIKey:         cfg.Finnhub.APIKey,
		URL:            cfg.Finnhub.WebSocketURL,
		Symbols:        cfg.Finnhub.Symbols,
		ReconnectDelay: cfg.Finnhub.ReconnectDelay,
		PingInterval:   cfg.Finnhub.PingInterval,
	}, log)
	pipe := mid.NewTickPipeline(m, []mid.TickSink{book},
		mid.WithMaxRPS(cfg.Finnhub.MaxRPS),
		mid.WithMaxAge(cfg.Finnhub.MaxTickAge),
		mid.WithSymbols(cfg.Finnhub.Symbols),
	)
	return usecase.NewPriceCollector(stream, pipe, m, log)
}

func ProvideConfigStore(src repository.ConfigSource, log *applogger.Logger) *usecase.ConfigStore {
	return usecase.NewConfigStore(src, log)
}

func ProvideSentimentAggregator(store repository.SentimentStore) *usecase.SentimentAggregator {
	return usecase.NewSentimentAggregator(store)
}

func ProvidePositionTracker(repo repository.PositionRepository, m repository.Metrics) *usecase.PositionTracker {
	return usecase.NewPositionTracker(repo, m)
}

func ProvideTradeExecutor(
	cfg *config.Config,
	b domsvc.Broker,
	trades repository.TradeRepository,
	tracker *usecase.PositionTracker,
	pub repository.TradePublisher,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.TradeExecutor {
	return usecase.NewTradeExecutor(b, trades, tracker, pub, usecase.NewRiskManager(), m, log,
		usecase.WithSubmitTimeout(cfg.Bot.SubmitTimeout),
		usecase.WithRetryBackoff(cfg.Bot.RetryBackoff),
	)
}

func ProvideReconciler(
	cfg *config.Config,
	trades repository.TradeRepository,
	b domsvc.Broker,
	executor *usecase.TradeExecutor,
	locks *usecase.SymbolLocks,
	log *applogger.Logger,
) *usecase.Reconciler {
	return usecase.NewReconciler(trades, b, executor, locks, log, cfg.Bot.LockTimeout, cfg.Bot.ReconcileGrace)
}

func ProvideCycleRunner(
	cfg *config.Config,
	agg *usecase.SentimentAggregator,
	executor *usecase.TradeExecutor,
	tracker *usecase.PositionTracker,
	rec *usecase.Reconciler,
	locks *usecase.SymbolLocks,
	prices domsvc.PriceSource,
	snapshots repository.SnapshotStore,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.CycleRunner {
	return usecase.NewCycleRunner(agg, usecase.NewDecisionEngine(), executor, tracker, rec, locks, prices, snapshots, m, log,
		usecase.CycleSettings{
			Window:        cfg.Bot.Window,
			LockTimeout:   cfg.Bot.LockTimeout,
			Concurrency:   cfg.Bot.Concurrency,
			AccountEquity: cfg.Bot.AccountEquity,
		})
}

// ProvideBotController builds the periodic driver. With Redis and
// cycle_lease set, replicas share one cycle lease.
func ProvideBotController(
	cfg *config.Config,
	runner *usecase.CycleRunner,
	configs *usecase.ConfigStore,
	rc *cache.RedisCache,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.BotController {
	var opts []usecase.ControllerOption
	if cfg.Bot.CycleLease && rc != nil {
		opts = append(opts, usecase.WithCycleLease(rc, 2*cfg.Bot.Interval))
	}
	return usecase.NewBotController(runner, configs, m, log, cfg.Bot.Interval, opts...)
}

func ProvideSentimentService(
	cfg *config.Config,
	configs *usecase.ConfigStore,
	agg *usecase.SentimentAggregator,
	store repository.SentimentStore,
	archive repository.ObservationArchive,
	snapshots repository.SnapshotStore,
	m repository.Metrics,
	log *applogger.Logger,
) *usecase.SentimentService {
	return usecase.NewSentimentService(configs, agg, store, archive, snapshots, m, log, cfg.Bot.Window)
}

func ProvideTradingService(
	cfg *config.Config,
	configs *usecase.ConfigStore,
	executor *usecase.TradeExecutor,
	tracker *usecase.PositionTracker,
	trades repository.TradeRepository,
	prices domsvc.PriceSource,
	locks *usecase.SymbolLocks,
) *usecase.TradingService {
	return usecase.NewTradingService(configs, executor, tracker, trades, prices, locks, cfg.Bot.LockTimeout, cfg.Bot.AccountEquity)
}

func ProvideObservationsHandler(cfg *config.Config, svc *usecase.SentimentService, m repository.Metrics) *usecase.ObservationsHandler {
	return usecase.NewObservationsHandler(cfg.Kafka.ObservationsTopic, svc, m)
}

// ProvideHTTPHandler builds the REST handler with health checks for every
// enabled backend.
func ProvideHTTPHandler(
	cfg *config.Config,
	log *applogger.Logger,
	sentiment *usecase.SentimentService,
	trading *usecase.TradingService,
	bot *usecase.BotController,
	configs *usecase.ConfigStore,
	c cache.Service,
	pg *pkgpg.Client,
	ch *pkgch.Client,
	rc *cache.RedisCache,
	collector *usecase.PriceCollector,
) *api.TradingEchoHandler {
	opts := []api.HandlerOption{
		api.WithTradeLimiter(ratelimit.New(cfg.Server.TradeRateLimit.RPS, cfg.Server.TradeRateLimit.Burst)),
		api.WithActiveSymbolsCache(c, 30*time.Second),
		api.WithActiveSince(cfg.Bot.ActiveSince),
	}
	if pg != nil {
		opts = append(opts, api.WithHealthCheck("postgres", pg.Health))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if rc != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Client().Ping(ctx).Err()
		}))
	}
	if collector != nil {
		opts = append(opts, api.WithHealthCheck("finnhub", func(context.Context) error {
			if !collector.IsConnected() {
				return fmt.Errorf("stream disconnected")
			}
			return nil
		}))
	}
	return api.NewTradingEchoHandler(log, sentiment, trading, bot, configs, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.TradingEchoHandler, log *applogger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins...),
		xhttp.WithLogger(log),
	)
}

// ProvideClosers lists infrastructure released at shutdown, in order.
func ProvideClosers(
	pub repository.TradePublisher,
	c cache.Service,
	pg *pkgpg.Client,
	ch *pkgch.Client,
) []server.Closer {
	closers := []server.Closer{{Name: "kafka producer", Close: pub.Close}}
	if mc, ok := c.(*cache.MemoryCache); ok {
		closers = append(closers, server.Closer{Name: "memory cache", Close: mc.Close})
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		closers = append(closers, server.Closer{Name: "redis", Close: rc.Close})
	}
	if pg != nil {
		closers = append(closers, server.Closer{Name: "postgres", Close: pg.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	return closers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	srv *xhttp.Server,
	bot *usecase.BotController,
	configs *usecase.ConfigStore,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	oh *usecase.ObservationsHandler,
	producer *pkgkafka.Producer,
	closers []server.Closer,
) *server.App {
	if cfg.Log.CollectTopic != "" && producer != nil {
		log.AddCollector(&applogger.CollectionConfig{
			Topic:       cfg.Log.CollectTopic,
			Publisher:   producer,
			Service:     "sentitrade",
			Environment: cfg.Environment,
			MinLevel:    cfg.Log.CollectLevel,
			Interval:    cfg.Log.CollectInterval,
		})
	}
	var handler pkgkafka.MessageHandler
	if consumer != nil {
		handler = oh
	}
	return server.New(cfg, log, srv, bot, configs, collector, consumer, handler, closers)
}
