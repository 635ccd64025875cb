package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"attendance/internal/attendance/eligibility"
	"attendance/internal/attendance/metrics"
	"attendance/internal/attendance/models"
	"attendance/internal/attendance/report"
	"attendance/internal/platform/device"
	dErrors "attendance/pkg/domain-errors"
	"attendance/pkg/platform/sentinel"
	"attendance/pkg/requestcontext"
)

// Ledger is the durable attendance store. Record must enforce both per-day
// uniqueness rules atomically and report a violation as sentinel.ErrConflict.
type Ledger interface {
	Record(ctx context.Context, rec *models.AttendanceRecord) error
	ListByDate(ctx context.Context, date string) ([]*models.AttendanceRecord, error)
}

// Checker decides eligibility for a submission.
type Checker interface {
	Check(now time.Time, lat, long float64) eligibility.Decision
}

// Service orchestrates validation, eligibility and the ledger write. It is
// the only caller of the ledger.
type Service struct {
	ledger   Ledger
	checker  Checker
	location *time.Location
	backend  string
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBackend labels ledger latency metrics.
func WithBackend(name string) Option {
	return func(s *Service) {
		s.backend = name
	}
}

// WithLocation sets the timezone for record dates; defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

func New(ledger Ledger, checker Checker, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		checker:  checker,
		location: time.Local,
		backend:  "unknown",
		logger:   slog.Default(),
		tracer:   otel.Tracer("attendance/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mark validates a submission, checks eligibility at the request time and
// writes exactly one record. Errors carry a domain code.
func (s *Service) Mark(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "attendance.Mark")
	defer span.End()

	rec, outcome, err := s.mark(ctx, sub)

	s.metrics.IncrementOutcome(outcome)
	s.metrics.ObserveMarkLatency(time.Since(start))
	span.SetAttributes(attribute.String("attendance.outcome", outcome))
	if outcome == metrics.OutcomeError {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger write failed")
	}
	return rec, err
}

func (s *Service) mark(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, string, error) {
	if err := validateSubmission(sub); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}

	now := requestcontext.Now(ctx)
	logAttrs := []any{
		"roll_number", models.NormalizeIdentity(sub.Identity),
		"device_id", strings.TrimSpace(sub.DeviceID),
		"request_id", requestcontext.RequestID(ctx),
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		logAttrs = append(logAttrs, "client", device.ParseUserAgent(ua))
	}

	decision := s.checker.Check(now, sub.Latitude, sub.Longitude)
	if !decision.Allowed {
		s.logger.InfoContext(ctx, "attendance denied", append(logAttrs, "reason", string(decision.Reason))...)
		if decision.Reason == eligibility.ReasonOutsideTime {
			return nil, metrics.OutcomeOutsideTime, decision.Err()
		}
		return nil, metrics.OutcomeOutsideLocation, decision.Err()
	}

	rec := models.NewRecord(sub, now, s.location)
	writeStart := time.Now()
	err := s.ledger.Record(ctx, rec)
	s.metrics.ObserveLedgerLatency(s.backend, time.Since(writeStart))
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.InfoContext(ctx, "duplicate attendance submission", append(logAttrs, "date", rec.Date)...)
			return nil, metrics.OutcomeDuplicate, dErrors.Wrap(err, dErrors.CodeDuplicate, "attendance already marked for today")
		}
		s.logger.ErrorContext(ctx, "failed to record attendance", append(logAttrs, "error", err)...)
		return nil, metrics.OutcomeError, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record attendance")
	}

	s.logger.InfoContext(ctx, "attendance recorded", append(logAttrs, "date", rec.Date, "time", rec.Time)...)
	return rec, metrics.OutcomeRecorded, nil
}

func validateSubmission(sub models.Submission) error {
	if strings.TrimSpace(sub.Identity) == "" {
		return dErrors.New(dErrors.CodeValidation, "roll_number is required")
	}
	if strings.TrimSpace(sub.DeviceID) == "" {
		return dErrors.New(dErrors.CodeValidation, "device_id is required")
	}
	if math.IsNaN(sub.Latitude) || math.IsInf(sub.Latitude, 0) || sub.Latitude < -90 || sub.Latitude > 90 {
		return dErrors.New(dErrors.CodeValidation, "lat must be a number between -90 and 90")
	}
	if math.IsNaN(sub.Longitude) || math.IsInf(sub.Longitude, 0) || sub.Longitude < -180 || sub.Longitude > 180 {
		return dErrors.New(dErrors.CodeValidation, "long must be a number between -180 and 180")
	}
	return nil
}

// ResolveDate validates a YYYY-MM-DD date; empty means today at the site.
func (s *Service) ResolveDate(ctx context.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return requestcontext.Now(ctx).In(s.location).Format(models.DateLayout), nil
	}
	if _, err := models.ParseDate(raw); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "date must be formatted YYYY-MM-DD")
	}
	return raw, nil
}

// ListByDate returns every record for one day.
func (s *Service) ListByDate(ctx context.Context, rawDate string) (*models.DailyAttendance, error) {
	ctx, span := s.tracer.Start(ctx, "attendance.ListByDate")
	defer span.End()

	date, err := s.ResolveDate(ctx, rawDate)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("attendance.date", date))

	records, err := s.ledger.ListByDate(ctx, date)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list attendance", "date", date, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger read failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	if records == nil {
		records = []*models.AttendanceRecord{}
	}
	return &models.DailyAttendance{Date: date, Count: len(records), Records: records}, nil
}

// Export writes one day's records to w as an XLSX workbook and returns the
// resolved date.
func (s *Service) Export(ctx context.Context, rawDate string, w io.Writer) (string, error) {
	day, err := s.ListByDate(ctx, rawDate)
	if err != nil {
		return "", err
	}
	if err := report.WriteDaily(w, day); err != nil {
		s.logger.ErrorContext(ctx, "failed to export attendance", "date", day.Date, "error", err)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to export attendance")
	}
	return day.Date, nil
}
