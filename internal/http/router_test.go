package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/attendance/eligibility"
	"attendance/internal/attendance/handler"
	attendancemetrics "attendance/internal/attendance/metrics"
	"attendance/internal/attendance/service"
	"attendance/internal/attendance/store"
	jwttoken "attendance/internal/jwt_token"
	"attendance/internal/platform/metrics"
	dErrors "attendance/pkg/domain-errors"
	"attendance/pkg/testutil"
)

const (
	siteLat  = 23.110917
	siteLong = 72.526056
)

// newTestRouter wires the real service over an in-memory ledger with a
// window centred on the current time, so submissions are always in hours.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	now := time.Now().UTC()
	checker := eligibility.NewChecker(
		eligibility.Window{
			Start: eligibility.TimeOfDayOf(now.Add(-time.Hour)),
			End:   eligibility.TimeOfDayOf(now.Add(time.Hour)),
		},
		eligibility.Geofence{Latitude: siteLat, Longitude: siteLong, Radius: 0.0015},
		time.UTC,
	)

	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(), checker,
		service.WithLogger(logger),
		service.WithMetrics(attendancemetrics.New(reg)),
		service.WithLocation(time.UTC),
	)
	jwt := jwttoken.NewJWTService("router-test-key", "attendance", "attendance-admin")

	return NewRouter(Options{
		Logger:         logger,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		AllowedOrigins: []string{"*"},
	}, handler.New(svc, logger, jwttoken.NewMiddlewareAdapter(jwt)))
}

func markBody(roll, device string, lat, long float64) map[string]any {
	return map[string]any{"roll_number": roll, "device_id": device, "lat": lat, "long": long}
}

func TestRouterAttendanceFlow(t *testing.T) {
	testutil.Given(t, "a running attendance API", func(t *testing.T) {
		router := newTestRouter(t)

		testutil.When(t, "checking liveness", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/"))

			testutil.Then(t, "it reports the API as running", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", "Attendance API running")
			})
		})

		testutil.When(t, "a student marks attendance at the site", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/api/mark-attendance",
				markBody("abc123", "phone-1", 23.111000, 72.526100))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "the record is accepted", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				testutil.AssertJSONContains(t, rr, "status", handler.StatusRecorded)
			})
		})

		testutil.When(t, "the same student submits again from another phone", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/api/mark-attendance",
				markBody(" ABC123 ", "phone-2", siteLat, siteLong))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is rejected as a duplicate", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeDuplicate))
			})
		})

		testutil.When(t, "another student reuses the first phone", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/api/mark-attendance",
				markBody("xyz999", "phone-1", siteLat, siteLong))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is rejected as a duplicate", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusConflict, string(dErrors.CodeDuplicate))
			})
		})

		testutil.When(t, "a student submits from far away", func(t *testing.T) {
			req := testutil.NewJSONRequest(t, http.MethodPost, "/api/mark-attendance",
				markBody("far001", "phone-9", 23.200000, siteLong))
			rr := testutil.DoRequest(router, req)

			testutil.Then(t, "it is denied for location", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusForbidden, string(dErrors.CodeOutsideLocation))
			})
		})
	})
}

func TestRouterTransportConcerns(t *testing.T) {
	router := newTestRouter(t)

	t.Run("unknown route renders the error envelope", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/nope"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	t.Run("wrong method is rejected", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/mark-attendance"))
		testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		_ = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/api/mark-attendance",
			markBody("m1", "d1", siteLat, siteLong)))

		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
		testutil.AssertStatusOK(t, rr)
		body := rr.Body.String()
		assert.True(t, strings.Contains(body, "attendance_mark_outcomes_total"))
		assert.True(t, strings.Contains(body, "attendance_http_request_duration_seconds"))
	})

	t.Run("admin listing needs a token", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/attendance"))
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/")
		req.Header.Set("X-Request-ID", "trace-me")
		rr := testutil.DoRequest(router, req)
		require.Equal(t, "trace-me", rr.Header().Get("X-Request-ID"))
	})
}
