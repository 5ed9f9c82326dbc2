package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/config"
	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/server"
)

func main() {
	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	rules := config.LoadRulesOrDefault(cfg.Rules.Path)
	logger.Info("rules loaded",
		zap.Int("monitored_apps", len(rules.MonitoredApps)),
		zap.Int("quota", rules.QuickTask.Quota),
	)

	srv, err := server.New(cfg, rules, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shut down")
}
