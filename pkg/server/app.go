package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "IncluScore/internal/middleware"
	"IncluScore/internal/usecase"
	pkgch "IncluScore/pkg/clickhouse"
	"IncluScore/pkg/config"
	xhttp "IncluScore/pkg/http"
	pkgkafka "IncluScore/pkg/kafka"
	applogger "IncluScore/pkg/logger"
	"IncluScore/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	engine      *usecase.ScoringEngine
	consumer    *pkgkafka.Consumer
	oh          pkgkafka.MessageHandler
	pipeline    *mid.OutcomePipeline
	retrainQ    *queue.RedisQueue
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	engine *usecase.ScoringEngine,
	consumer *pkgkafka.Consumer,
	oh pkgkafka.MessageHandler,
	pipeline *mid.OutcomePipeline,
	retrainQ *queue.RedisQueue,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		engine:      engine,
		consumer:    consumer,
		oh:          oh,
		pipeline:    pipeline,
		retrainQ:    retrainQ,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger
	if l == nil {
		l, _ = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	}

	// Load the active model version, or train the initial one
	if err := a.engine.Manager().Bootstrap(ctx); err != nil {
		l.Error("model bootstrap failed", applogger.Error(err))
		return err
	}
	if version, ok := a.engine.Manager().Active(); ok {
		l.Info("scoring engine ready",
			applogger.String("model_version", version.ID),
			applogger.Int("training_size", version.TrainingDataSize))
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(l, 2*time.Second),
	)

	// Start outcome buffering pipeline
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		l.Info("outcome pipeline started")
	}

	// Start outcomes consumer
	if a.consumer != nil && a.oh != nil {
		a.consumer.RegisterHandler(a.oh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.oh.Topic()))
	}

	// Start retrain job queue
	if a.retrainQ != nil {
		if err := a.retrainQ.Start(); err != nil {
			l.Error("retrain queue start error", applogger.Error(err))
		} else {
			l.Info("retrain queue started")
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx, l)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context, l *applogger.Logger) error {
	if l == nil {
		var err error
		l, err = applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			log.Printf("failed to create logger: %v", err)
			return err
		}
	}
	l.Info("shutting down...")

	// Shutdown HTTP server first so no new requests arrive
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Stop retrain queue workers
	if a.retrainQ != nil {
		if err := a.retrainQ.Stop(shutdownCtx); err != nil {
			l.Warn("retrain queue stop error", applogger.Error(err))
		}
	}

	// Stop consumer
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Flush aggregated logs while the producer is still open
	if a.logger != nil {
		a.logger.RemoveCollector()
	}

	// Drain and close the outcome pipeline (closes the Kafka producer)
	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			l.Warn("outcome pipeline close error", applogger.Error(err))
		}
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
