package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"attendance/internal/attendance/models"
	dErrors "attendance/pkg/domain-errors"
)

// Coordinate accepts a JSON number or a numeric string ("23.11").
type Coordinate struct {
	Value float64
	Set   bool
}

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("coordinate %q is not a number", s)
		}
		c.Value, c.Set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("coordinate must be a number")
	}
	c.Value, c.Set = v, true
	return nil
}

func (c Coordinate) MarshalJSON() ([]byte, error) {
	if !c.Set {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

// MarkAttendanceRequest is the body of POST /api/mark-attendance.
type MarkAttendanceRequest struct {
	RollNumber string     `json:"roll_number"`
	DeviceID   string     `json:"device_id"`
	Lat        Coordinate `json:"lat"`
	Long       Coordinate `json:"long"`
}

// Validate trims fields and checks presence. Range checks live in the service.
func (r *MarkAttendanceRequest) Validate() error {
	r.RollNumber = strings.TrimSpace(r.RollNumber)
	r.DeviceID = strings.TrimSpace(r.DeviceID)
	switch {
	case r.RollNumber == "":
		return dErrors.New(dErrors.CodeValidation, "roll_number is required")
	case r.DeviceID == "":
		return dErrors.New(dErrors.CodeValidation, "device_id is required")
	case !r.Lat.Set:
		return dErrors.New(dErrors.CodeValidation, "lat is required")
	case !r.Long.Set:
		return dErrors.New(dErrors.CodeValidation, "long is required")
	}
	return nil
}

func (r *MarkAttendanceRequest) Submission() models.Submission {
	return models.Submission{
		Identity:  r.RollNumber,
		DeviceID:  r.DeviceID,
		Latitude:  r.Lat.Value,
		Longitude: r.Long.Value,
	}
}
