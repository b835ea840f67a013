package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SentiTrade/internal/usecase"
	"SentiTrade/pkg/config"
	xhttp "SentiTrade/pkg/http"
	pkgkafka "SentiTrade/pkg/kafka"
	applogger "SentiTrade/pkg/logger"
)

// Closer is an infrastructure resource released at shutdown.
type Closer struct {
	Name  string
	Close func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	bot        *usecase.BotController
	configs    *usecase.ConfigStore
	collector  *usecase.PriceCollector
	consumer   *pkgkafka.Consumer
	handler    pkgkafka.MessageHandler
	closers    []Closer
}

// New creates a new App instance with all dependencies. collector, consumer
// and handler are nil when the matching integration is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpServer *xhttp.Server,
	bot *usecase.BotController,
	configs *usecase.ConfigStore,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	handler pkgkafka.MessageHandler,
	closers []Closer,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		bot:        bot,
		configs:    configs,
		collector:  collector,
		consumer:   consumer,
		handler:    handler,
		closers:    closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		a.shutdown()
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown()
	return nil
}

// Start loads the symbol config and launches every component. It returns
// once they are running.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.configs.Reload(ctx); err != nil {
		// the bot reloads every cycle; an empty snapshot just evaluates nothing
		a.log.Error("initial config load failed", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("price collector start error", applogger.Error(err))
		} else {
			a.log.Info("price collector started", applogger.Strings("symbols", a.cfg.Finnhub.Symbols))
		}
	}

	if a.consumer != nil && a.handler != nil {
		a.consumer.RegisterHandler(a.handler)
		if err := a.consumer.Start(); err != nil {
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	if a.cfg.Bot.Autostart {
		a.bot.Start()
	}
	return nil
}

// shutdown stops intake first, then the bot, then releases infrastructure.
func (a *App) shutdown() {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// waits for an in-flight symbol to finish
	if err := a.bot.Shutdown(ctx); err != nil {
		a.log.Warn("bot shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("price collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// flushes aggregated error logs while the producer is still open
	a.log.RemoveCollector()

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
}
