// Package report renders attendance records as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"attendance/internal/attendance/models"
)

// SheetName is the worksheet that holds the records.
const SheetName = "Attendance"

// ContentType is the MIME type of the workbook produced by WriteDaily.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{"Roll Number", "Device ID", "Date", "Time", "Latitude", "Longitude", "Recorded At"}

// Filename is the suggested download name for a day's export.
func Filename(date string) string {
	return fmt.Sprintf("attendance-%s.xlsx", date)
}

// WriteDaily writes one day's records as an XLSX workbook to w.
func WriteDaily(w io.Writer, day *models.DailyAttendance) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "G1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "G", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	for i, r := range day.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			r.Identity,
			r.DeviceID,
			r.Date,
			r.Time,
			r.Latitude,
			r.Longitude,
			r.RecordedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
