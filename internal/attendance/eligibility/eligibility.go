// Package eligibility decides whether a submission may be recorded. It is a
// pure function of the current time and the submitted coordinates.
package eligibility

import (
	"fmt"
	"math"
	"strings"
	"time"

	dErrors "attendance/pkg/domain-errors"
)

// TimeOfDay is the offset from local midnight.
type TimeOfDay time.Duration

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM or HH:MM:SS", s)
	}
	return TimeOfDayOf(t), nil
}

// TimeOfDayOf returns the wall-clock offset of t in its own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Window is an inclusive time-of-day range. Start after End wraps midnight.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Contains reports whether tod lies inside the window, bounds included.
func (w Window) Contains(tod TimeOfDay) bool {
	if w.Start <= w.End {
		return tod >= w.Start && tod <= w.End
	}
	return tod >= w.Start || tod <= w.End
}

// Geofence is an axis-aligned square of half-width Radius degrees around the
// reference point. It is a coarse approximation of a circle, not geodesic.
type Geofence struct {
	Latitude  float64
	Longitude float64
	Radius    float64
}

// Contains applies a strict bound on both axes. NaN coordinates never match.
func (g Geofence) Contains(lat, long float64) bool {
	return math.Abs(lat-g.Latitude) < g.Radius && math.Abs(long-g.Longitude) < g.Radius
}

// Reason explains a denial.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonOutsideTime     Reason = "outside allowed time"
	ReasonOutsideLocation Reason = "outside allowed location"
)

// Decision is the checker's verdict.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

// Err converts a denial into a coded domain error; nil when allowed.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonOutsideTime:
		return dErrors.New(dErrors.CodeOutsideTime, d.Message)
	default:
		return dErrors.New(dErrors.CodeOutsideLocation, d.Message)
	}
}

// Checker holds the configured window and geofence.
type Checker struct {
	window   Window
	fence    Geofence
	location *time.Location
}

// NewChecker builds a checker; times are read in loc (time.Local when nil).
func NewChecker(window Window, fence Geofence, loc *time.Location) *Checker {
	if loc == nil {
		loc = time.Local
	}
	return &Checker{window: window, fence: fence, location: loc}
}

// Window returns the configured window.
func (c *Checker) Window() Window {
	return c.window
}

// Location returns the timezone used for time-of-day and calendar dates.
func (c *Checker) Location() *time.Location {
	return c.location
}

// Check evaluates time first, then location; a submission failing both
// reports the time failure.
func (c *Checker) Check(now time.Time, lat, long float64) Decision {
	if !c.window.Contains(TimeOfDayOf(now.In(c.location))) {
		return Decision{
			Reason:  ReasonOutsideTime,
			Message: fmt.Sprintf("attendance allowed only between %s and %s", c.window.Start, c.window.End),
		}
	}
	if !c.fence.Contains(lat, long) {
		return Decision{
			Reason:  ReasonOutsideLocation,
			Message: "you are not at the attendance location",
		}
	}
	return Decision{Allowed: true}
}
