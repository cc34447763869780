package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderdesk/internal/app"
)

func run(ctx context.Context, configFiles ...string) error {
	cfg, err := app.LoadConfig(configFiles...)
	if err != nil {
		return err
	}
	if err := app.ConfigureLogging(cfg); err != nil {
		return err
	}

	if err := app.RunRelay(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.WithError(err).Fatal("outbox relay завершился с ошибкой")
	}

	log.Info("outbox relay остановлен")
}
