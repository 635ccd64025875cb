// Package store holds the attendance ledger implementations. Every ledger
// enforces one record per (identity, date) and one per (device, date),
// first write wins, atomically with the insert.
package store

import (
	"fmt"

	"attendance/internal/attendance/models"
	"attendance/pkg/platform/sentinel"
)

// Which uniqueness rule rejected a write.
const (
	ConflictIdentity = "identity"
	ConflictDevice   = "device"
)

func conflictErr(rule string, rec *models.AttendanceRecord) error {
	switch rule {
	case ConflictDevice:
		return fmt.Errorf("device %q already recorded on %s: %w", rec.DeviceID, rec.Date, sentinel.ErrConflict)
	default:
		return fmt.Errorf("identity %q already recorded on %s: %w", rec.Identity, rec.Date, sentinel.ErrConflict)
	}
}

// prepare normalizes a record before any uniqueness check.
func prepare(rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if rec == nil {
		return nil, fmt.Errorf("attendance record is required")
	}
	cp := *rec
	cp.Identity = models.NormalizeIdentity(cp.Identity)
	if cp.Identity == "" || cp.DeviceID == "" || cp.Date == "" {
		return nil, fmt.Errorf("attendance record is missing identity, device or date")
	}
	return &cp, nil
}
