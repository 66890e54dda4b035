// Package main provides the entry point for the challenge evaluation
// backend: the hot-path trade engine, the cold-path risk worker and the
// HTTP/WebSocket API in one process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/walidbouh09/tradesense/internal/api"
	"github.com/walidbouh09/tradesense/internal/config"
	"github.com/walidbouh09/tradesense/internal/engine"
	"github.com/walidbouh09/tradesense/internal/events"
	"github.com/walidbouh09/tradesense/internal/risk"
	"github.com/walidbouh09/tradesense/internal/storage"
	"github.com/walidbouh09/tradesense/internal/workers"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := setupLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("starting tradesense backend",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("dsn", cfg.Database.DSN),
		zap.Duration("worker_interval", cfg.Worker.Interval),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.New(logger, cfg.Database.DSN, cfg.Database.LogQueries)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Event plumbing: metrics and the WebSocket hub both ride the bus,
	// the hub as the sink so domain handlers always run first.
	bus := events.NewBus(logger)

	metrics := api.NewMetrics()
	metrics.Observe(bus)

	hub := api.NewHub(logger)
	bus.SetSink(hub.Sink())
	go hub.Run(ctx)

	eng := engine.New(logger, bus)

	assessor, err := risk.NewAssessor(logger, cfg.Alerts, cfg.Worker.AssessmentVersion)
	if err != nil {
		logger.Fatal("failed to initialize risk assessor", zap.Error(err))
	}

	worker := workers.NewRiskWorker(
		logger,
		workers.Config{
			Interval:      cfg.Worker.Interval,
			MaxRuntime:    cfg.Worker.MaxRuntime,
			MaxConcurrent: cfg.Worker.MaxConcurrent,
		},
		assessor,
		bus,
		storage.NewChallengeRepository(db.DB()),
		storage.NewTradeRepository(db.DB()),
		storage.NewAssessmentRepository(db.DB()),
	)

	// The worker exits on its max-runtime boundary; restart it until
	// shutdown.
	go func() {
		for {
			if err := worker.Run(ctx); err != nil {
				logger.Error("risk worker error", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			default:
				logger.Info("restarting risk worker")
			}
		}
	}()

	server := api.NewServer(logger, &cfg.Server, db, eng, bus, hub, metrics)
	server.SetWorkerStats(func() any { return worker.GetStats() })

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", zap.Error(err))
		}
	}()

	logger.Info("backend started",
		zap.String("http", fmt.Sprintf("http://%s:%d/api/v1", cfg.Server.Host, cfg.Server.Port)),
		zap.String("ws", fmt.Sprintf("ws://%s:%d%s", cfg.Server.Host, cfg.Server.Port, cfg.Server.WebSocketPath)),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
	}

	logger.Info("backend stopped")
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
