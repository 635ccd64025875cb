package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseHeader(name string) string
	GetStatuses() []int
}

// RegisterSteps registers per-client submission limit steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I send (\d+) submissions from the same client within a minute$`, steps.sendBurst)
	ctx.Step(`^at least one submission should be rejected with status 429$`, steps.someRejected)
	ctx.Step(`^the rejection should carry a Retry-After header$`, steps.rejectionHasRetryAfter)
}

type ratelimitSteps struct {
	tc          TestContext
	retryAfter  string
	sawRejected bool
}

func (s *ratelimitSteps) sendBurst(_ context.Context, n int) error {
	s.retryAfter = ""
	s.sawRejected = false
	base := strconv.FormatInt(time.Now().UnixNano(), 36)
	for i := range n {
		// coordinates far from any site; only the limiter decision matters here
		err := s.tc.POST("/api/mark-attendance", map[string]any{
			"roll_number": fmt.Sprintf("burst-%s-%d", base, i),
			"device_id":   fmt.Sprintf("burst-dev-%s-%d", base, i),
			"lat":         0,
			"long":        0,
		})
		if err != nil {
			return err
		}
		statuses := s.tc.GetStatuses()
		if statuses[len(statuses)-1] == 429 {
			s.sawRejected = true
			s.retryAfter = s.tc.GetLastResponseHeader("Retry-After")
			return nil
		}
	}
	return nil
}

func (s *ratelimitSteps) someRejected(_ context.Context) error {
	if !s.sawRejected {
		return fmt.Errorf("no submission was rate limited: %v", s.tc.GetStatuses())
	}
	return nil
}

func (s *ratelimitSteps) rejectionHasRetryAfter(_ context.Context) error {
	secs, err := strconv.Atoi(s.retryAfter)
	if err != nil || secs < 1 {
		return fmt.Errorf("invalid Retry-After %q", s.retryAfter)
	}
	return nil
}
