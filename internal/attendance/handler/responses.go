package handler

import "attendance/internal/attendance/models"

// StatusRecorded is the status of a successful submission.
const StatusRecorded = "recorded"

type MarkAttendanceResponse struct {
	Status  string                   `json:"status"`
	Message string                   `json:"message"`
	Record  *models.AttendanceRecord `json:"record"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
