package app

import (
	"context"
	"fmt"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vladislavdragonenkov/orderdesk/internal/health"
	"github.com/vladislavdragonenkov/orderdesk/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orderdesk/internal/metrics"
	"github.com/vladislavdragonenkov/orderdesk/internal/service/outbox"
	"github.com/vladislavdragonenkov/orderdesk/internal/storage/postgres"
	"github.com/vladislavdragonenkov/orderdesk/internal/version"
)

// RunRelay переносит события заказов из outbox в Kafka до отмены ctx.
func RunRelay(ctx context.Context, cfg Config) error {
	if err := cfg.ValidateRelay(); err != nil {
		return fmt.Errorf("invalid relay config: %w", err)
	}

	logger := log.WithField("component", "outbox-relay")
	logger.WithFields(version.Info().Fields()).WithFields(log.Fields{
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.KafkaTopic,
	}).Info("starting outbox relay")

	store, err := openPostgres(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:  cfg.KafkaBrokers,
		ClientID: cfg.KafkaClientID,
	})
	if err != nil {
		return err
	}
	defer closeKafkaProducer(producer, logger)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	relayOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "relay")),
		outbox.WithMetrics(m),
	}
	if cfg.KafkaDLQTopic != "" {
		relayOpts = append(relayOpts, outbox.WithDeadLetter(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)))
	}
	relay := outbox.NewRelay(
		postgres.NewOutboxRepository(store),
		kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		cfg.relaySettings(),
		relayOpts...,
	)

	healthHandler := health.NewHandler(version.Info().Version)
	healthHandler.RegisterChecker("storage", health.NewPingChecker("postgres", store))

	metricsLis, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		relay.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return serve(gctx, cfg.ShutdownTimeout, logger, []servedListener{
			{name: "metrics", srv: newMetricsServer(registry, healthHandler), lis: metricsLis},
		})
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func closeKafkaProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

func (c Config) relaySettings() outbox.Settings {
	return outbox.Settings{
		PollInterval:   c.OutboxPollInterval,
		BatchSize:      c.OutboxBatchSize,
		MaxAttempts:    c.OutboxMaxAttempts,
		RetryBaseDelay: c.OutboxRetryDelay,
		MaxRetryDelay:  c.OutboxMaxDelay,
	}
}
