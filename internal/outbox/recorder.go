package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"attendance/internal/attendance/models"
	"attendance/internal/platform/device"
	"attendance/pkg/requestcontext"
)

// Appender is the write half of an outbox store.
type Appender interface {
	Append(ctx context.Context, e *Entry) error
}

// Recorder turns newly inserted attendance records into outbox entries.
// Request metadata (client label, request id) is read from ctx.
type Recorder struct {
	store Appender
}

func NewRecorder(store Appender) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) AppendRecorded(ctx context.Context, rec *models.AttendanceRecord) error {
	eventID := uuid.New()
	userAgent := requestcontext.UserAgent(ctx)
	event := models.RecordedEvent{
		EventID:           eventID.String(),
		RecordID:          rec.ID.String(),
		Identity:          rec.Identity,
		DeviceID:          rec.DeviceID,
		Date:              rec.Date,
		Time:              rec.Time,
		Latitude:          rec.Latitude,
		Longitude:         rec.Longitude,
		RecordedAt:        rec.RecordedAt.UTC().Format(time.RFC3339Nano),
		ClientFingerprint: device.Fingerprint(userAgent),
		RequestID:         requestcontext.RequestID(ctx),
	}
	if userAgent != "" {
		event.ClientLabel = device.ParseUserAgent(userAgent)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal recorded event: %w", err)
	}
	return r.store.Append(ctx, &Entry{
		ID:          eventID,
		AggregateID: rec.ID.String(),
		EventType:   models.EventAttendanceRecorded,
		Payload:     payload,
		CreatedAt:   rec.RecordedAt,
	})
}
