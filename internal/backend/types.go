package backend

import (
	"encoding/json"
	"time"
)

// CategoryType classifies products for order-limit rules.
type CategoryType string

const (
	CategoryDrink CategoryType = "DRINK"
	CategorySnack CategoryType = "SNACK"
	CategoryFood  CategoryType = "FOOD"
	CategoryOther CategoryType = "OTHER"
)

// Normalize maps unknown or empty category types to OTHER.
func (c CategoryType) Normalize() CategoryType {
	switch c {
	case CategoryDrink, CategorySnack, CategoryFood:
		return c
	}
	return CategoryOther
}

type OrderStatus string

const (
	StatusPlaced    OrderStatus = "PLACED"
	StatusPreparing OrderStatus = "PREPARING"
	StatusReady     OrderStatus = "READY"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// Active reports whether the order still counts against the patient's limits.
func (s OrderStatus) Active() bool {
	switch s {
	case StatusPlaced, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderLimits is the per-category ceiling of an assignment. Null or missing entries mean no limit.
type OrderLimits map[CategoryType]int

func (l *OrderLimits) UnmarshalJSON(data []byte) error {
	var raw map[string]*int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(OrderLimits, len(raw))
	for k, v := range raw {
		if v != nil {
			out[CategoryType(k)] = *v
		}
	}
	*l = out
	return nil
}

// Limit returns the ceiling for a category. Only DRINK and SNACK with a positive value are capped.
func (l OrderLimits) Limit(c CategoryType) (int, bool) {
	if c != CategoryDrink && c != CategorySnack {
		return 0, false
	}
	v, ok := l[c]
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

type Patient struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

type Room struct {
	Code string `json:"code"`
}

type Staff struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// ActivePatient is the assignment currently bound to a kiosk device.
type ActivePatient struct {
	AssignmentID    int64       `json:"assignment_id"`
	DeviceUID       string      `json:"device_uid"`
	Patient         Patient     `json:"patient"`
	Room            Room        `json:"room"`
	Staff           Staff       `json:"staff"`
	StartedAt       time.Time   `json:"started_at"`
	OrderLimits     OrderLimits `json:"order_limits"`
	SurveyEnabled   bool        `json:"survey_enabled"`
	CanPatientOrder *bool       `json:"can_patient_order"`
}

// CanOrder defaults to true when the server does not send the flag.
func (p ActivePatient) CanOrder() bool {
	return p.CanPatientOrder == nil || *p.CanPatientOrder
}

type OrderItem struct {
	ProductID    int64        `json:"product"`
	ProductName  string       `json:"product_name"`
	Quantity     int          `json:"quantity"`
	CategoryType CategoryType `json:"category_type"`
}

type Order struct {
	ID       int64       `json:"id"`
	Status   OrderStatus `json:"status"`
	RoomCode string      `json:"room_code"`
	PlacedAt time.Time   `json:"placed_at"`
	Items    []OrderItem `json:"items"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

type Product struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	CategoryID   int64        `json:"category"`
	CategoryName string       `json:"category_name"`
	CategoryType CategoryType `json:"category_type"`
	UnitLabel    string       `json:"unit_label"`
	IsAvailable  bool         `json:"is_available"`
}

// CreateItem is one line of an order submission.
type CreateItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	DeviceUID string       `json:"device_uid"`
	Items     []CreateItem `json:"items"`
}

type createOrderResponse struct {
	Order Order `json:"order"`
}

type changeStatusRequest struct {
	ToStatus OrderStatus `json:"to_status"`
	Note     string      `json:"note,omitempty"`
}

// OrderFeedback is the per-order satisfaction rating.
type OrderFeedback struct {
	DeviceUID          string `json:"device_uid"`
	SatisfactionRating int    `json:"satisfaction_rating"`
	Comment            string `json:"comment,omitempty"`
}

// ProductRatings maps order id to product id to a rating 1..5.
type ProductRatings map[int64]map[int64]int

// CompleteFeedback is the final survey submission.
type CompleteFeedback struct {
	PatientAssignmentID int64          `json:"patient_assignment_id"`
	ProductRatings      ProductRatings `json:"product_ratings"`
	StaffRating         int            `json:"staff_rating"`
	StayRating          int            `json:"stay_rating"`
	Comment             string         `json:"comment,omitempty"`
}
