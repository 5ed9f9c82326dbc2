package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mindgate/mindgate/internal/infrastructure/config"
	"github.com/mindgate/mindgate/internal/infrastructure/logging"
	"github.com/mindgate/mindgate/internal/projection"
	"github.com/mindgate/mindgate/internal/uihost"
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

	client := uihost.NewClient(
		cfg.UIHost.ServerURL,
		time.Duration(cfg.UIHost.ReconnectMinMs)*time.Millisecond,
		time.Duration(cfg.UIHost.ReconnectMaxMs)*time.Millisecond,
		logger,
	)

	// The rendering layer subscribes here. Session replacement is its
	// only render signal; session absence is its only teardown signal.
	onSession := func(s projection.Session) {
		logger.Info("session",
			zap.String("kind", string(s.Kind)),
			zap.String("app", s.App),
		)
	}
	onDirective := func(d projection.Directive, app string) {
		logger.Info("directive",
			zap.String("directive", string(d)),
			zap.String("app", app),
		)
	}

	pm := projection.NewManager(client, onSession, onDirective, logger)
	client.SetManager(pm)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client.Run(ctx)
	logger.Info("shut down")
}
