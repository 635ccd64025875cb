package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"attendance/internal/attendance/service"
	"attendance/internal/attendance/store"
	"attendance/internal/outbox"
	"attendance/internal/platform/config"
	"attendance/internal/platform/kafka"
	"attendance/internal/platform/postgres"
	platformredis "attendance/internal/platform/redis"
)

type ledger interface {
	service.Ledger
	EnsureSchema(ctx context.Context) error
	Close() error
}

type worker interface {
	Run(ctx context.Context) error
}

// ledgerBackend is the selected store plus whatever runs beside it.
type ledgerBackend struct {
	ledger   ledger
	workers  []worker
	producer *kafka.Producer
	redis    redis.UniversalClient
}

func (b *ledgerBackend) close(log *slog.Logger) {
	if b.producer != nil {
		b.producer.Close()
	}
	if err := b.ledger.Close(); err != nil {
		log.Warn("failed to close ledger", "error", err)
	}
}

// openLedger builds the configured ledger and makes its schema ready.
func openLedger(ctx context.Context, cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*ledgerBackend, error) {
	backend := &ledgerBackend{}

	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		db, err := postgres.ConnectWithRetry(ctx, cfg.Ledger.DatabaseDriver, cfg.Ledger.DatabaseURL, 10, 2*time.Second)
		if err != nil {
			return nil, err
		}
		opts := []store.PostgresOption{store.WithTxTimeout(cfg.Ledger.TxTimeout)}

		if len(cfg.Kafka.Brokers) > 0 {
			events := outbox.NewPostgres(db)
			if err := events.EnsureSchema(ctx); err != nil {
				_ = db.Close()
				return nil, err
			}
			producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
				log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
			}
			backend.producer = producer
			backend.workers = append(backend.workers, outbox.NewRelay(events, producer,
				cfg.Kafka.RelayInterval, cfg.Kafka.RelayBatchSize, log, outbox.NewMetrics(reg)))
			opts = append(opts, store.WithEventWriter(outbox.NewRecorder(events)))
			log.Info("outbox relay enabled", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
		}
		backend.ledger = store.NewPostgres(db, opts...)

	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		backend.redis = client.Client
		backend.ledger = store.NewRedis(client.Client)

	default:
		if len(cfg.Kafka.Brokers) > 0 {
			log.Warn("KAFKA_BROKERS ignored: the outbox needs the postgres ledger")
		}
		backend.ledger = store.NewInMemory()
	}

	if err := backend.ledger.EnsureSchema(ctx); err != nil {
		backend.close(log)
		return nil, fmt.Errorf("prepare %s ledger: %w", cfg.Ledger.Backend, err)
	}
	return backend, nil
}
