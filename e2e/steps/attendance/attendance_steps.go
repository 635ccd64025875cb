package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetAdminToken() string
}

// RegisterSteps registers attendance marking and admin read steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &attendanceSteps{tc: tc}

	ctx.Step(`^a new student with device "([^"]*)"$`, steps.newStudent)
	ctx.Step(`^the student submits attendance at the site$`, steps.submitAtSite)
	ctx.Step(`^the student submits attendance (\d+) metres? north of the site$`, steps.submitNorthOfSite)
	ctx.Step(`^another student submits attendance from the same device$`, steps.anotherStudentSameDevice)
	ctx.Step(`^I submit attendance without a roll number$`, steps.submitWithoutRollNumber)
	ctx.Step(`^I list today's attendance as an admin$`, steps.listAsAdmin)
	ctx.Step(`^I list today's attendance without a token$`, steps.listWithoutToken)
	ctx.Step(`^the listing should include the student$`, steps.listingIncludesStudent)
}

type attendanceSteps struct {
	tc       TestContext
	rollNo   string
	deviceID string
}

// siteCoordinates follows the server's SITE_LAT and SITE_LONG, falling back to
// the built-in default site.
func siteCoordinates() (float64, float64) {
	lat, long := 23.110917, 72.526056
	if v, err := strconv.ParseFloat(os.Getenv("SITE_LAT"), 64); err == nil {
		lat = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("SITE_LONG"), 64); err == nil {
		long = v
	}
	return lat, long
}

func uniqueSuffix() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

func (s *attendanceSteps) newStudent(_ context.Context, device string) error {
	suffix := uniqueSuffix()
	s.rollNo = "e2e-" + suffix
	s.deviceID = device + "-" + suffix
	return nil
}

func (s *attendanceSteps) submit(rollNo, deviceID string, lat, long float64) error {
	return s.tc.POST("/api/mark-attendance", map[string]any{
		"roll_number": rollNo,
		"device_id":   deviceID,
		"lat":         lat,
		"long":        long,
	})
}

func (s *attendanceSteps) submitAtSite(_ context.Context) error {
	lat, long := siteCoordinates()
	return s.submit(s.rollNo, s.deviceID, lat, long)
}

func (s *attendanceSteps) submitNorthOfSite(_ context.Context, metres int) error {
	lat, long := siteCoordinates()
	// one degree of latitude is roughly 111 km
	return s.submit(s.rollNo, s.deviceID, lat+float64(metres)/111_000, long)
}

func (s *attendanceSteps) anotherStudentSameDevice(_ context.Context) error {
	lat, long := siteCoordinates()
	return s.submit("e2e-other-"+uniqueSuffix(), s.deviceID, lat, long)
}

func (s *attendanceSteps) submitWithoutRollNumber(_ context.Context) error {
	lat, long := siteCoordinates()
	return s.tc.POST("/api/mark-attendance", map[string]any{
		"device_id": "e2e-device-" + uniqueSuffix(),
		"lat":       lat,
		"long":      long,
	})
}

func (s *attendanceSteps) listAsAdmin(_ context.Context) error {
	token := s.tc.GetAdminToken()
	if token == "" {
		return godog.ErrSkip
	}
	return s.tc.GET("/api/attendance", map[string]string{"Authorization": "Bearer " + token})
}

func (s *attendanceSteps) listWithoutToken(_ context.Context) error {
	return s.tc.GET("/api/attendance", nil)
}

func (s *attendanceSteps) listingIncludesStudent(_ context.Context) error {
	var day struct {
		Records []struct {
			RollNumber string `json:"roll_number"`
		} `json:"records"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &day); err != nil {
		return fmt.Errorf("decode listing: %w", err)
	}
	for _, rec := range day.Records {
		if rec.RollNumber == s.rollNo {
			return nil
		}
	}
	return fmt.Errorf("roll number %s not found in listing", s.rollNo)
}
