package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"attendance/internal/attendance/models"
	"attendance/internal/platform/postgres"
	dErrors "attendance/pkg/domain-errors"
	txcontext "attendance/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// Constraint names map a unique violation back to the rule that fired.
const (
	constraintIdentityDay = "attendance_roll_number_day_key"
	constraintDeviceDay   = "attendance_device_day_key"
)

const attendanceSchema = `
CREATE TABLE IF NOT EXISTS attendance (
	id          UUID PRIMARY KEY,
	roll_number TEXT NOT NULL,
	device_id   TEXT NOT NULL,
	record_date DATE NOT NULL,
	record_time TEXT NOT NULL,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT attendance_roll_number_day_key UNIQUE (roll_number, record_date),
	CONSTRAINT attendance_device_day_key UNIQUE (device_id, record_date)
)`

// EventWriter appends an event for a freshly inserted record. It must use the
// transaction carried in ctx so the event commits or rolls back with the row.
type EventWriter interface {
	AppendRecorded(ctx context.Context, rec *models.AttendanceRecord) error
}

// PostgresLedger persists records in the attendance table. The unique
// constraints are the source of truth for first-write-wins.
type PostgresLedger struct {
	db      *sql.DB
	timeout time.Duration
	events  EventWriter
}

type PostgresOption func(*PostgresLedger)

// WithTxTimeout bounds each insert transaction when the caller set no deadline.
func WithTxTimeout(d time.Duration) PostgresOption {
	return func(l *PostgresLedger) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithEventWriter appends an outbox event inside each insert transaction.
func WithEventWriter(w EventWriter) PostgresOption {
	return func(l *PostgresLedger) {
		l.events = w
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresLedger {
	l := &PostgresLedger{db: db, timeout: defaultTxTimeout}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, attendanceSchema); err != nil {
		return fmt.Errorf("ensure attendance schema: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}

func (l *PostgresLedger) Record(ctx context.Context, rec *models.AttendanceRecord) error {
	r, err := prepare(rec)
	if err != nil {
		return err
	}
	day, err := models.ParseDate(r.Date)
	if err != nil {
		return fmt.Errorf("parse record date: %w", err)
	}

	return l.runInTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attendance (id, roll_number, device_id, record_date, record_time, latitude, longitude, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, r.ID, r.Identity, r.DeviceID, day, r.Time, r.Latitude, r.Longitude, r.RecordedAt)
		if err != nil {
			if constraint, ok := postgres.IsUniqueViolation(err); ok {
				if constraint == constraintDeviceDay {
					return conflictErr(ConflictDevice, r)
				}
				return conflictErr(ConflictIdentity, r)
			}
			return fmt.Errorf("insert attendance: %w", err)
		}
		if l.events != nil {
			if err := l.events.AppendRecorded(ctx, r); err != nil {
				return fmt.Errorf("append recorded event: %w", err)
			}
		}
		return nil
	})
}

func (l *PostgresLedger) ListByDate(ctx context.Context, date string) ([]*models.AttendanceRecord, error) {
	day, err := models.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, roll_number, device_id, record_date, record_time, latitude, longitude, recorded_at
		FROM attendance
		WHERE record_date = $1
		ORDER BY recorded_at, id
	`, day)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var out []*models.AttendanceRecord
	for rows.Next() {
		var (
			r       models.AttendanceRecord
			recDate time.Time
		)
		if err := rows.Scan(&r.ID, &r.Identity, &r.DeviceID, &recDate, &r.Time, &r.Latitude, &r.Longitude, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		r.Date = recDate.Format(models.DateLayout)
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}

// runInTx scopes one transaction: begin, defer rollback, commit on success.
// The transaction is also placed in ctx for collaborators such as the outbox.
func (l *PostgresLedger) runInTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	return nil
}
