package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"attendance/internal/attendance/models"
)

func TestWriteDaily(t *testing.T) {
	at := time.Date(2026, 3, 2, 10, 20, 0, 0, time.UTC)
	day := &models.DailyAttendance{
		Date: "2026-03-02",
		Records: []*models.AttendanceRecord{
			models.NewRecord(models.Submission{Identity: "abc123", DeviceID: "dev-1", Latitude: 23.111, Longitude: 72.5261}, at, time.UTC),
			models.NewRecord(models.Submission{Identity: "xyz999", DeviceID: "dev-2", Latitude: 23.1112, Longitude: 72.526}, at.Add(time.Minute), time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDaily(&buf, day))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Roll Number", rows[0][0])
	assert.Equal(t, []string{"ABC123", "dev-1", "2026-03-02", "10:20:00"}, rows[1][:4])
	assert.Equal(t, "XYZ999", rows[2][0])
	assert.Equal(t, "2026-03-02T10:21:00Z", rows[2][6])
}

func TestWriteDailyEmptyDayHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDaily(&buf, &models.DailyAttendance{Date: "2026-03-02"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "attendance-2026-03-02.xlsx", Filename("2026-03-02"))
}
