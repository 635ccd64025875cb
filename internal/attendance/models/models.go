package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Layouts used for the date-only and time-of-day columns.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// AttendanceRecord is one accepted submission. It is created once and never
// mutated: at most one exists per (Identity, Date) and per (DeviceID, Date).
type AttendanceRecord struct {
	ID         uuid.UUID `json:"id"`
	Identity   string    `json:"roll_number"`
	DeviceID   string    `json:"device_id"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Latitude   float64   `json:"lat"`
	Longitude  float64   `json:"long"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Submission is the caller's claim before any checks ran.
type Submission struct {
	Identity  string
	DeviceID  string
	Latitude  float64
	Longitude float64
}

// NormalizeIdentity trims and upper-cases an identity. It is idempotent.
func NormalizeIdentity(identity string) string {
	return strings.ToUpper(strings.TrimSpace(identity))
}

// NewRecord stamps a submission with the date and time-of-day of now in loc.
func NewRecord(sub Submission, now time.Time, loc *time.Location) *AttendanceRecord {
	local := now.In(loc)
	return &AttendanceRecord{
		ID:         uuid.New(),
		Identity:   NormalizeIdentity(sub.Identity),
		DeviceID:   strings.TrimSpace(sub.DeviceID),
		Date:       local.Format(DateLayout),
		Time:       local.Format(TimeLayout),
		Latitude:   sub.Latitude,
		Longitude:  sub.Longitude,
		RecordedAt: now.UTC(),
	}
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(date string) (time.Time, error) {
	return time.Parse(DateLayout, date)
}

// EventAttendanceRecorded is the outbox event type for new records.
const EventAttendanceRecorded = "attendance_recorded"

// RecordedEvent is the payload relayed to Kafka for each new record.
type RecordedEvent struct {
	EventID           string  `json:"event_id"`
	RecordID          string  `json:"record_id"`
	Identity          string  `json:"roll_number"`
	DeviceID          string  `json:"device_id"`
	Date              string  `json:"date"`
	Time              string  `json:"time"`
	Latitude          float64 `json:"lat"`
	Longitude         float64 `json:"long"`
	RecordedAt        string  `json:"recorded_at"`
	ClientLabel       string  `json:"client_label,omitempty"`
	ClientFingerprint string  `json:"client_fingerprint,omitempty"`
	RequestID         string  `json:"request_id,omitempty"`
}

// DailyAttendance is one day's records, oldest first.
type DailyAttendance struct {
	Date    string              `json:"date"`
	Count   int                 `json:"count"`
	Records []*AttendanceRecord `json:"records"`
}
