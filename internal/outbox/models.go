// Package outbox implements the transactional outbox: events are written in
// the same Postgres transaction as the attendance row and relayed to Kafka by
// a background worker.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one pending or published event.
type Entry struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
