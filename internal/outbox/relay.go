package outbox

import (
	"context"
	"log/slog"
	"time"

	"attendance/internal/platform/kafka"
)

// Publisher delivers messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// BatchProcessor is the relay's view of the outbox store.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, limit int, fn func(ctx context.Context, entries []*Entry) error) (int, error)
}

// Relay polls the outbox and publishes pending entries. Delivery is
// at-least-once: an entry is marked published only after the broker acked it.
type Relay struct {
	store     BatchProcessor
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

func NewRelay(store BatchProcessor, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger, metrics *Metrics) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run relays until ctx is cancelled. Batch failures are logged and retried on
// the next tick; a full batch is followed immediately by another.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.metrics.incFailures()
				r.logger.WarnContext(ctx, "outbox relay batch failed", "error", err)
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	n, err := r.store.ProcessBatch(ctx, r.batchSize, func(ctx context.Context, entries []*Entry) error {
		msgs := make([]kafka.Message, 0, len(entries))
		for _, e := range entries {
			msgs = append(msgs, kafka.Message{
				Key:   []byte(e.AggregateID),
				Value: e.Payload,
				Headers: map[string]string{
					"event_id":   e.ID.String(),
					"event_type": e.EventType,
				},
			})
		}
		return r.publisher.Publish(ctx, msgs...)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.metrics.addPublished(n)
		r.logger.DebugContext(ctx, "outbox entries relayed", "count", n)
	}
	return n, nil
}
