package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"CrashCast/internal/domain/models"
	drepo "CrashCast/internal/domain/repository"
	"CrashCast/internal/handler/api"
	"CrashCast/internal/handler/ws"
	mid "CrashCast/internal/middleware"
	"CrashCast/internal/usecase"
	"CrashCast/pkg/cache"
	pkgch "CrashCast/pkg/clickhouse"
	"CrashCast/pkg/config"
	xhttp "CrashCast/pkg/http"
	applogger "CrashCast/pkg/logger"
	pkgqueue "CrashCast/pkg/queue"

	"github.com/labstack/echo/v4"
)

// App encapsulates the application lifecycle: the forecast loop, the HTTP
// and websocket surfaces, and the sink pipelines feeding Kafka and
// ClickHouse.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	forecaster *usecase.Forecaster
	hub        *ws.Hub
	handler    *api.ForecastHandler
	publisher  drepo.EventPublisher
	history    drepo.HistoryStore
	chClient   *pkgch.Client
	metrics    drepo.Metrics
	queue      *pkgqueue.RedisQueue
	cache      cache.Service

	httpServer *xhttp.Server
	pipelines  []*mid.SinkPipeline
}

// New creates an App with all dependencies. Optional collaborators
// (publisher, history, queue) may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	forecaster *usecase.Forecaster,
	hub *ws.Hub,
	handler *api.ForecastHandler,
	publisher drepo.EventPublisher,
	history drepo.HistoryStore,
	chClient *pkgch.Client,
	metrics drepo.Metrics,
	queue *pkgqueue.RedisQueue,
	c cache.Service,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		forecaster: forecaster,
		hub:        hub,
		handler:    handler,
		publisher:  publisher,
		history:    history,
		chClient:   chClient,
		metrics:    metrics,
		queue:      queue,
		cache:      c,
	}
}

// cacheSink keeps the latest emitted event in the cache for cheap reads.
type cacheSink struct {
	c cache.Service
}

func (s cacheSink) Process(ctx context.Context, ev models.PredictionEvent) error {
	return s.c.Set(ctx, "latest_event", ev, time.Hour)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.wireSubscribers(ctx)

	if a.queue != nil {
		if err := a.queue.RegisterJob(usecase.NewFeedbackJob(a.forecaster)); err != nil {
			return err
		}
		if err := a.queue.Start(); err != nil {
			return err
		}
		a.log.Info("feedback queue started")
	}

	routes := multiHandler{a.handler, a.hub}
	a.httpServer = xhttp.NewServer(routes, a.log,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}

	if a.cfg.Engine.AutoStart {
		a.forecaster.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// wireSubscribers attaches the websocket hub and the sink pipelines to the
// emission channel. Pipelines absorb sink latency so subscribers never
// block the loop.
func (a *App) wireSubscribers(ctx context.Context) {
	emitter := a.forecaster.Emitter()

	emitter.Subscribe(a.hub.Broadcast)

	addPipeline := func(sink mid.Sink) {
		p := mid.NewSinkPipeline(sink, a.metrics)
		p.Start(ctx)
		a.pipelines = append(a.pipelines, p)
		emitter.Subscribe(p.Enqueue)
	}

	if a.publisher != nil {
		if sink, ok := a.publisher.(mid.Sink); ok {
			addPipeline(sink)
			a.log.Info("kafka sink attached", applogger.String("topic", a.cfg.Kafka.Topic))
		}
	}
	if a.history != nil {
		if sink, ok := a.history.(mid.Sink); ok {
			addPipeline(sink)
			a.log.Info("clickhouse sink attached", applogger.String("table", a.cfg.ClickHouse.Table))
		}
	}
	if a.cache != nil {
		addPipeline(cacheSink{c: a.cache})
	}
}

// shutdown stops all services in dependency order: the loop first so no
// new events enter, then the pipelines so buffered events drain, then the
// outward surfaces and clients.
func (a *App) shutdown(ctx context.Context) error {
	a.forecaster.Stop()

	for _, p := range a.pipelines {
		p.Stop()
	}

	if a.queue != nil {
		a.queue.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.hub.Close()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}

// multiHandler registers several route groups on one server.
type multiHandler []xhttp.Handler

func (m multiHandler) RegisterRoutes(e *echo.Echo) {
	for _, h := range m {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}
