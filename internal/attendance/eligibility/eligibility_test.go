package eligibility

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "attendance/pkg/domain-errors"
)

var (
	refFence = Geofence{Latitude: 23.110917, Longitude: 72.526056, Radius: 0.0015}
	day      = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func mustTOD(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func newChecker(t *testing.T) *Checker {
	t.Helper()
	return NewChecker(Window{Start: mustTOD(t, "10:15"), End: mustTOD(t, "23:35")}, refFence, time.UTC)
}

func at(hour, min, sec, nsec int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second + time.Duration(nsec))
}

func TestParseTimeOfDay(t *testing.T) {
	assert.Equal(t, TimeOfDay(10*time.Hour+15*time.Minute), mustTOD(t, "10:15"))
	assert.Equal(t, TimeOfDay(23*time.Hour+35*time.Minute+10*time.Second), mustTOD(t, "23:35:10"))
	assert.Equal(t, "10:15", mustTOD(t, "10:15").String())
	assert.Equal(t, "23:35:10", mustTOD(t, "23:35:10").String())

	for _, bad := range []string{"", "24:00", "10.15", "7pm"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestConcreteScenario(t *testing.T) {
	c := newChecker(t)

	d := c.Check(at(10, 20, 0, 0), 23.111000, 72.526100)
	assert.True(t, d.Allowed)
	assert.NoError(t, d.Err())

	d = c.Check(at(9, 0, 0, 0), 23.111000, 72.526100)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOutsideTime, d.Reason)
	assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeOutsideTime))

	d = c.Check(at(10, 20, 0, 0), 23.200000, 72.526056)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonOutsideLocation, d.Reason)
	assert.True(t, dErrors.HasCode(d.Err(), dErrors.CodeOutsideLocation))
}

func TestTimeIsCheckedBeforeLocation(t *testing.T) {
	c := newChecker(t)
	d := c.Check(at(6, 0, 0, 0), 0, 0)
	assert.Equal(t, ReasonOutsideTime, d.Reason)
}

func TestOutsideWindowDeniedRegardlessOfLocation(t *testing.T) {
	c := newChecker(t)
	coords := [][2]float64{
		{23.110917, 72.526056},
		{23.111000, 72.526100},
		{-40, 170},
		{math.NaN(), math.NaN()},
	}
	for _, when := range []time.Time{at(0, 0, 0, 0), at(10, 14, 59, 999_999_999), at(23, 35, 0, 1), at(23, 59, 59, 0)} {
		for _, c2 := range coords {
			d := c.Check(when, c2[0], c2[1])
			assert.Equal(t, ReasonOutsideTime, d.Reason, "at %s", when.Format(time.RFC3339Nano))
		}
	}
}

func TestWindowBoundsAreInclusive(t *testing.T) {
	c := newChecker(t)
	assert.True(t, c.Check(at(10, 15, 0, 0), 23.110917, 72.526056).Allowed)
	assert.True(t, c.Check(at(23, 35, 0, 0), 23.110917, 72.526056).Allowed)
}

func TestWindowUsesConfiguredLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	c := NewChecker(Window{Start: mustTOD(t, "10:15"), End: mustTOD(t, "23:35")}, refFence, ist)

	// 05:00 UTC is 10:30 IST.
	assert.True(t, c.Check(at(5, 0, 0, 0), 23.110917, 72.526056).Allowed)
	// 20:00 UTC is 01:30 IST the next day.
	assert.Equal(t, ReasonOutsideTime, c.Check(at(20, 0, 0, 0), 23.110917, 72.526056).Reason)
}

func TestWindowWrappingMidnight(t *testing.T) {
	w := Window{Start: mustTOD(t, "22:00"), End: mustTOD(t, "02:00")}
	assert.True(t, w.Contains(mustTOD(t, "23:30")))
	assert.True(t, w.Contains(mustTOD(t, "00:00")))
	assert.True(t, w.Contains(mustTOD(t, "02:00")))
	assert.False(t, w.Contains(mustTOD(t, "12:00")))
	assert.False(t, w.Contains(mustTOD(t, "21:59:59")))
}

func TestGeofenceIsStrictSquare(t *testing.T) {
	g := Geofence{Latitude: 10, Longitude: 20, Radius: 0.5}

	assert.True(t, g.Contains(10.49, 20.49))
	assert.True(t, g.Contains(9.51, 19.51))
	// Corners of the square are inside even though a circle would exclude them.
	assert.True(t, g.Contains(10.45, 20.45))
	assert.False(t, g.Contains(10.5, 20), "bound is strict on latitude")
	assert.False(t, g.Contains(10, 19.5), "bound is strict on longitude")
	assert.False(t, g.Contains(10, 21))
	assert.False(t, g.Contains(math.NaN(), 20))
}

func TestDenialMessageMatchesConfiguredWindow(t *testing.T) {
	c := newChecker(t)
	d := c.Check(at(9, 0, 0, 0), 23.110917, 72.526056)
	assert.Equal(t, "attendance allowed only between 10:15 and 23:35", d.Message)
}
