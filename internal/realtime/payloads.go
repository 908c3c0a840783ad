package realtime

import (
	"errors"
	"time"
)

var (
	errMissingOrderID      = errors.New("order_id is required")
	errMissingAssignmentID = errors.New("assignment_id is required")
)

// OrderStatusChanged is sent to a kiosk when one of its orders moves.
type OrderStatusChanged struct {
	OrderID    int64     `json:"order_id"`
	Status     string    `json:"status"`
	FromStatus string    `json:"from_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

func (p *OrderStatusChanged) validate() error {
	if p.OrderID == 0 {
		return errMissingOrderID
	}
	return nil
}

// OrderCreatedByStaff is sent to a kiosk when staff placed an order on the patient's behalf.
type OrderCreatedByStaff struct {
	OrderID  int64     `json:"order_id"`
	PlacedAt time.Time `json:"placed_at"`
}

func (p *OrderCreatedByStaff) validate() error {
	if p.OrderID == 0 {
		return errMissingOrderID
	}
	return nil
}

type PatientAssigned struct {
	AssignmentID int64     `json:"assignment_id"`
	PatientID    int64     `json:"patient_id"`
	PatientName  string    `json:"patient_name"`
	RoomCode     string    `json:"room_code"`
	StartedAt    time.Time `json:"started_at"`
}

func (p *PatientAssigned) validate() error {
	if p.AssignmentID == 0 {
		return errMissingAssignmentID
	}
	return nil
}

// PatientAssignmentEnded is a staff event; the assignment id may be absent.
type PatientAssignmentEnded struct {
	AssignmentID int64     `json:"assignment_id"`
	StaffID      int64     `json:"staff_id"`
	EndedAt      time.Time `json:"ended_at"`
}

type LimitsUpdated struct {
	AssignmentID int64           `json:"assignment_id"`
	OrderLimits  map[string]*int `json:"order_limits"`
	// CanPatientOrder is only sent by newer servers.
	CanPatientOrder *bool `json:"can_patient_order,omitempty"`
}

func (p *LimitsUpdated) validate() error {
	if p.AssignmentID == 0 {
		return errMissingAssignmentID
	}
	return nil
}

type SurveyEnabled struct {
	AssignmentID  int64 `json:"assignment_id"`
	PatientID     int64 `json:"patient_id"`
	SurveyEnabled bool  `json:"survey_enabled"`
}

func (p *SurveyEnabled) validate() error {
	if p.AssignmentID == 0 {
		return errMissingAssignmentID
	}
	return nil
}

type SessionEnded struct {
	AssignmentID int64     `json:"assignment_id"`
	EndedAt      time.Time `json:"ended_at"`
}

func (p *SessionEnded) validate() error {
	if p.AssignmentID == 0 {
		return errMissingAssignmentID
	}
	return nil
}

// NewOrder is broadcast to staff when a patient places an order.
type NewOrder struct {
	OrderID   int64     `json:"order_id"`
	RoomCode  string    `json:"room_code"`
	PlacedAt  time.Time `json:"placed_at"`
	DeviceUID string    `json:"device_uid"`
}

func (p *NewOrder) validate() error {
	if p.OrderID == 0 {
		return errMissingOrderID
	}
	return nil
}

type OrderUpdated struct {
	OrderID    int64     `json:"order_id"`
	Status     string    `json:"status"`
	FromStatus string    `json:"from_status"`
	ChangedAt  time.Time `json:"changed_at"`
}

func (p *OrderUpdated) validate() error {
	if p.OrderID == 0 {
		return errMissingOrderID
	}
	return nil
}
