package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"attendance/internal/attendance/models"
	"attendance/internal/attendance/report"
	"attendance/internal/platform/middleware"
	dErrors "attendance/pkg/domain-errors"
	"attendance/pkg/platform/httputil"
)

// Service defines the attendance operations the handler needs.
type Service interface {
	Mark(ctx context.Context, sub models.Submission) (*models.AttendanceRecord, error)
	ListByDate(ctx context.Context, date string) (*models.DailyAttendance, error)
	Export(ctx context.Context, date string, w io.Writer) (string, error)
}

// Handler serves the attendance endpoints.
type Handler struct {
	logger       *slog.Logger
	attendance   Service
	jwtValidator middleware.JWTValidator
	markLimiter  func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithMarkLimiter guards the submission endpoint, typically with a per-client
// rate limit.
func WithMarkLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.markLimiter = mw
	}
}

func New(attendance Service, logger *slog.Logger, jwtValidator middleware.JWTValidator, opts ...Option) *Handler {
	h := &Handler{
		logger:       logger,
		attendance:   attendance,
		jwtValidator: jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the public and admin routes. Transport-wide middleware
// (request id, logging, recovery, timeouts) is installed by the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/", h.handleHealth)
	mark := []func(http.Handler) http.Handler{middleware.ContentTypeJSON}
	if h.markLimiter != nil {
		mark = append([]func(http.Handler) http.Handler{h.markLimiter}, mark...)
	}
	r.With(mark...).Post("/api/mark-attendance", h.handleMarkAttendance)

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.RequireAdmin(h.jwtValidator, h.logger))
		admin.Get("/api/attendance", h.handleListAttendance)
		admin.Get("/api/attendance/export", h.handleExportAttendance)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "Attendance API running"})
}

func (h *Handler) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[MarkAttendanceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.attendance.Mark(ctx, req.Submission())
	if err != nil {
		h.writeServiceError(ctx, w, err, "mark attendance")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, MarkAttendanceResponse{
		Status:  StatusRecorded,
		Message: "Attendance marked successfully",
		Record:  rec,
	})
}

func (h *Handler) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	day, err := h.attendance.ListByDate(ctx, r.URL.Query().Get("date"))
	if err != nil {
		h.writeServiceError(ctx, w, err, "list attendance")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, day)
}

func (h *Handler) handleExportAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var buf bytes.Buffer
	date, err := h.attendance.Export(ctx, r.URL.Query().Get("date"), &buf)
	if err != nil {
		h.writeServiceError(ctx, w, err, "export attendance")
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(date)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to write export",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
}

// writeServiceError logs by severity and renders the domain envelope.
func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	requestID := middleware.GetRequestID(ctx)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.DebugContext(ctx, op+" rejected",
			"request_id", requestID,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
