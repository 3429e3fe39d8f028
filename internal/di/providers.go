package di

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"time"

	"CrashCast/internal/domain/models"
	"CrashCast/internal/domain/repository"
	"CrashCast/internal/engine"
	"CrashCast/internal/handler/api"
	"CrashCast/internal/handler/ws"
	internalrepo "CrashCast/internal/repository"
	"CrashCast/internal/usecase"
	"CrashCast/pkg/cache"
	pkgch "CrashCast/pkg/clickhouse"
	"CrashCast/pkg/config"
	pkgkafka "CrashCast/pkg/kafka"
	xlogger "CrashCast/pkg/logger"
	"CrashCast/pkg/metrics"
	pkgqueue "CrashCast/pkg/queue"
	"CrashCast/pkg/server"

	"github.com/redis/go-redis/v9"
)

// ProvideCollector creates the bounded log ring backing /api/logs.
func ProvideCollector() *xlogger.Collector {
	return xlogger.NewCollector(256)
}

// ProvideLogger creates the application logger with the collector attached.
func ProvideLogger(cfg *config.Config, col *xlogger.Collector) (*xlogger.Logger, error) {
	l, err := xlogger.New(&xlogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AttachCollector(col)
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCategories builds the validated category set.
func ProvideCategories(cfg *config.Config) (models.CategorySet, error) {
	return engine.BuildCategories(cfg.Categories, cfg.Engine.MaxMultiplier)
}

// ProvideDetector builds the phase detector from the configured mode.
func ProvideDetector(cfg *config.Config) (*engine.Detector, error) {
	return engine.NewDetector(engine.BuildDetectionMode(cfg.Engine))
}

// ProvideRuleTable expands the configured defaults and overrides into the
// full rule table, one entry per reachable phase key.
func ProvideRuleTable(cfg *config.Config, detector *engine.Detector, cats models.CategorySet) (*engine.RuleTable, error) {
	return engine.BuildRuleTable(cfg.Rules, detector, cats)
}

// ProvideGenerator creates the multiplier generator.
func ProvideGenerator(cfg *config.Config, cats models.CategorySet, l *xlogger.Logger) (*engine.Generator, error) {
	return engine.NewGenerator(cats, cfg.Engine.MaxMultiplier, l)
}

// ProvideCalibrator creates the calibration adjuster.
func ProvideCalibrator(
	cfg *config.Config,
	detector *engine.Detector,
	table *engine.RuleTable,
	cats models.CategorySet,
	l *xlogger.Logger,
) (*engine.Calibrator, error) {
	return engine.NewCalibrator(detector, table, cats, cfg.Engine.MaxMultiplier, engine.CalibratorConfig{
		LearningRate: cfg.Engine.LearningRate,
		WeightStep:   cfg.Engine.WeightStep,
		WeightFloor:  cfg.Engine.WeightFloor,
	}, l)
}

// ProvideForecaster wires the prediction loop.
func ProvideForecaster(
	cfg *config.Config,
	detector *engine.Detector,
	table *engine.RuleTable,
	gen *engine.Generator,
	cal *engine.Calibrator,
	m repository.Metrics,
	l *xlogger.Logger,
) *usecase.Forecaster {
	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	emitter := usecase.NewEmitter(l)
	return usecase.NewForecaster(detector, table, gen, cal, emitter, m, l, cfg.Engine.TickInterval, rng)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
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
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher creates the Kafka event publisher, or nil.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideHistoryStore creates the ClickHouse history store, or nil.
func ProvideHistoryStore(ch *pkgch.Client, cfg *config.Config) (repository.HistoryStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseHistory(ch.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideRedisClient creates a shared Redis client, or nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideCache creates the query cache: Redis-backed when available,
// in-memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(), nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return cache.NewRedisCache(
		cache.WithRedisHost(host),
		cache.WithRedisPort(port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideQueue creates the Redis worker queue, or nil when disabled.
func ProvideQueue(cfg *config.Config, l *xlogger.Logger, client *redis.Client) *pkgqueue.RedisQueue {
	if client == nil || !cfg.Redis.Queue.Enabled {
		return nil
	}
	return pkgqueue.NewRedisQueue(l, &pkgqueue.Config{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, client)
}

// ProvideHub creates the websocket hub.
func ProvideHub(l *xlogger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

// ProvideHandler creates the API handler with its optional collaborators.
func ProvideHandler(
	l *xlogger.Logger,
	fc *usecase.Forecaster,
	history repository.HistoryStore,
	c cache.Service,
	col *xlogger.Collector,
) *api.ForecastHandler {
	h := api.NewForecastHandler(l, fc)
	h.SetHistory(history)
	h.SetCache(c)
	h.SetCollector(col)
	return h
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *xlogger.Logger,
	fc *usecase.Forecaster,
	hub *ws.Hub,
	handler *api.ForecastHandler,
	publisher repository.EventPublisher,
	history repository.HistoryStore,
	chClient *pkgch.Client,
	m repository.Metrics,
	q *pkgqueue.RedisQueue,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, fc, hub, handler, publisher, history, chClient, m, q, c)
}
