package kiosk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/realtime"
)

// State is the session state of the kiosk.
type State string

const (
	StateNoPatient State = "NO_PATIENT"
	StateActive    State = "ACTIVE"
)

// View is the screen the kiosk UI should show.
type View string

const (
	ViewWelcome      View = "welcome"
	ViewMenu         View = "menu"
	ViewActiveOrders View = "active_orders"
)

var (
	ErrNoActivePatient = errors.New("no active patient")
	ErrOrderingBlocked = errors.New("ordering is disabled for this patient")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidView     = errors.New("invalid view")
)

// PatientAPI is the part of the backend the session reads from and orders through.
type PatientAPI interface {
	ActivePatient(ctx context.Context, deviceUID string) (backend.ActivePatient, error)
	ActiveOrders(ctx context.Context, deviceUID string) ([]backend.Order, error)
	CreateOrder(ctx context.Context, deviceUID string, items []backend.CreateItem) (backend.Order, error)
}

// Snapshot is a point-in-time copy of the session for the UI.
type Snapshot struct {
	DeviceUID       string                       `json:"device_uid"`
	State           State                        `json:"state"`
	View            View                         `json:"view"`
	Patient         *backend.ActivePatient       `json:"patient"`
	CanPatientOrder bool                         `json:"can_patient_order"`
	HasSeenWelcome  bool                         `json:"has_seen_welcome"`
	OrderLimits     backend.OrderLimits          `json:"order_limits"`
	ActiveOrders    []backend.Order              `json:"active_orders"`
	ActiveCounts    map[backend.CategoryType]int `json:"active_counts"`
	Cart            map[int64]int                `json:"cart"`
	Survey          SurveyState                  `json:"survey"`
	LastReloadAt    time.Time                    `json:"last_reload_at"`
}

// Session is the kiosk session state machine. It derives its state from full reloads of the
// backend and reacts to socket events by reloading.
type Session struct {
	deviceUID string
	api       PatientAPI
	cart      *Cart
	survey    *Survey
	markers   *Markers
	log       *log.Logger

	mu             sync.Mutex
	state          State
	view           View
	patient        *backend.ActivePatient
	activeOrders   []backend.Order
	counts         map[backend.CategoryType]int
	hasSeenWelcome bool
	lastReload     time.Time
	ended          map[int64]struct{}
	// orderOverride holds a can-order decision taken from socket events. It lasts until the
	// backend reports can_patient_order itself or the patient changes.
	orderOverride *bool
}

func NewSession(deviceUID string, api PatientAPI, cart *Cart, survey *Survey, markers *Markers) *Session {
	return &Session{
		deviceUID: deviceUID,
		api:       api,
		cart:      cart,
		survey:    survey,
		markers:   markers,
		log:       logger.With("component", "session", "device", deviceUID),
		state:     StateNoPatient,
		view:      ViewWelcome,
		counts:    make(map[backend.CategoryType]int),
		ended:     make(map[int64]struct{}),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reload fetches the active patient and then its active orders. No active patient ends the
// session. Transport errors leave the current state untouched and are returned.
func (s *Session) Reload(ctx context.Context) error {
	patient, err := s.api.ActivePatient(ctx, s.deviceUID)
	if errors.Is(err, backend.ErrNoPatient) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateActive {
			s.log.Info("active patient is gone, ending session")
			s.clearLocked(ctx)
		}
		s.lastReload = time.Now()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load active patient: %w", err)
	}

	orders, ordersErr := s.api.ActiveOrders(ctx, s.deviceUID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ended := s.ended[patient.AssignmentID]; ended {
		s.log.Debug("discarding reload for ended assignment", "assignment", patient.AssignmentID)
		return nil
	}
	s.applyPatientLocked(ctx, patient)
	if ordersErr != nil {
		return fmt.Errorf("failed to load active orders: %w", ordersErr)
	}
	s.applyOrdersLocked(orders)
	s.lastReload = time.Now()
	return nil
}

func (s *Session) applyPatientLocked(ctx context.Context, patient backend.ActivePatient) {
	prev := s.patient
	changed := prev == nil || prev.AssignmentID != patient.AssignmentID || prev.Patient.ID != patient.Patient.ID

	if changed {
		marker, fresh, err := s.markers.Bind(ctx, patient.Patient.ID)
		if err != nil {
			s.log.Warn("failed to bind kiosk marker", "err", err)
		}
		if fresh || prev != nil {
			// Cart lines left on the device belong to a previous patient or an abandoned session.
			if err := s.cart.Clear(ctx); err != nil {
				s.log.Warn("failed to clear stale cart", "err", err)
			}
		}
		s.hasSeenWelcome = marker != nil && marker.HasSeenWelcome
		s.log.Info("patient session started", "assignment", patient.AssignmentID, "patient", patient.Patient.ID)
	}

	if changed || patient.CanPatientOrder != nil {
		s.orderOverride = nil
	}

	p := patient
	s.patient = &p
	s.state = StateActive
	if changed || s.view == ViewWelcome {
		s.view = ViewMenu
	}
	s.cart.SetLimits(patient.OrderLimits)

	if patient.SurveyEnabled {
		if patient.CanPatientOrder == nil {
			s.orderOverride = boolPtr(false)
		}
		if err := s.survey.Start(patient.AssignmentID, patient.Staff.FullName); err != nil {
			s.log.Warn("failed to resume survey", "assignment", patient.AssignmentID, "err", err)
		}
	}
}

// canOrderLocked reports whether the active patient may place orders.
func (s *Session) canOrderLocked() bool {
	if s.patient == nil {
		return false
	}
	if s.orderOverride != nil {
		return *s.orderOverride
	}
	return s.patient.CanOrder()
}

// overrideOrderingLocked records a can-order decision carried by a socket event.
func (s *Session) overrideOrderingLocked(canOrder bool) {
	if s.state != StateActive {
		return
	}
	s.orderOverride = boolPtr(canOrder)
}

func (s *Session) applyOrdersLocked(orders []backend.Order) {
	active := make([]backend.Order, 0, len(orders))
	counts := make(map[backend.CategoryType]int)
	for _, o := range orders {
		if !o.Status.Active() {
			continue
		}
		active = append(active, o)
		for _, item := range o.Items {
			counts[item.CategoryType.Normalize()] += item.Quantity
		}
	}
	s.activeOrders = active
	s.counts = counts
	s.cart.SetActiveUsage(counts)
}

// clearLocked returns the session to NO_PATIENT and drops everything tied to the patient.
func (s *Session) clearLocked(ctx context.Context) {
	s.state = StateNoPatient
	s.view = ViewWelcome
	s.patient = nil
	s.activeOrders = nil
	s.counts = make(map[backend.CategoryType]int)
	s.hasSeenWelcome = false
	s.orderOverride = nil

	if err := s.cart.Clear(ctx); err != nil {
		s.log.Warn("failed to clear cart", "err", err)
	}
	s.cart.SetLimits(nil)
	s.cart.SetActiveUsage(nil)
	if err := s.markers.Reset(ctx); err != nil {
		s.log.Warn("failed to reset kiosk marker", "err", err)
	}
	s.survey.Close()
}

// Register subscribes the session to the kiosk socket events.
func (s *Session) Register(r *realtime.Router) {
	r.Handle(realtime.TypePatientAssigned, s.onPatientAssigned)
	r.Handle(realtime.TypeOrderStatusChanged, s.onOrderStatusChanged)
	r.Handle(realtime.TypeLimitsUpdated, s.onLimitsUpdated)
	r.Handle(realtime.TypeSurveyEnabled, s.onSurveyEnabled)
	r.Handle(realtime.TypeOrderCreatedByStaff, s.onOrderCreatedByStaff)
	r.Handle(realtime.TypeSessionEnded, s.onSessionEnded)
}

func (s *Session) onPatientAssigned(ctx context.Context, msg realtime.Message) error {
	var p realtime.PatientAssigned
	if err := msg.Decode(&p); err != nil {
		return err
	}
	s.mu.Lock()
	// A new assignment is never stale, even if its id was seen ending before.
	delete(s.ended, p.AssignmentID)
	s.mu.Unlock()
	return s.Reload(ctx)
}

func (s *Session) onOrderStatusChanged(ctx context.Context, msg realtime.Message) error {
	var p realtime.OrderStatusChanged
	if err := msg.Decode(&p); err != nil {
		return err
	}
	err := s.reloadIfActive(ctx)
	if backend.OrderStatus(p.Status) == backend.StatusDelivered {
		s.mu.Lock()
		s.overrideOrderingLocked(false)
		s.mu.Unlock()
	}
	return err
}

func (s *Session) onLimitsUpdated(ctx context.Context, msg realtime.Message) error {
	var p realtime.LimitsUpdated
	if err := msg.Decode(&p); err != nil {
		return err
	}
	err := s.reloadIfActive(ctx)
	if p.CanPatientOrder != nil {
		s.mu.Lock()
		s.overrideOrderingLocked(*p.CanPatientOrder)
		s.mu.Unlock()
	}
	return err
}

func (s *Session) onSurveyEnabled(ctx context.Context, msg realtime.Message) error {
	var p realtime.SurveyEnabled
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if s.State() != StateActive {
		return nil
	}
	reloadErr := s.Reload(ctx)

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return reloadErr
	}
	if p.SurveyEnabled {
		s.overrideOrderingLocked(false)
	}
	assignmentID, staffName := p.AssignmentID, ""
	if s.patient != nil {
		staffName = s.patient.Staff.FullName
		if assignmentID == 0 {
			assignmentID = s.patient.AssignmentID
		}
	}
	s.mu.Unlock()

	if !p.SurveyEnabled {
		s.survey.Close()
		return reloadErr
	}
	if err := s.survey.Start(assignmentID, staffName); err != nil {
		return err
	}
	return reloadErr
}

func (s *Session) onOrderCreatedByStaff(ctx context.Context, msg realtime.Message) error {
	var p realtime.OrderCreatedByStaff
	if err := msg.Decode(&p); err != nil {
		return err
	}
	err := s.Reload(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && s.canOrderLocked() {
		s.view = ViewActiveOrders
	}
	return err
}

func (s *Session) onSessionEnded(ctx context.Context, msg realtime.Message) error {
	var p realtime.SessionEnded
	if err := msg.Decode(&p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended[p.AssignmentID] = struct{}{}
	s.log.Info("session ended", "assignment", p.AssignmentID)
	s.clearLocked(ctx)
	return nil
}

func (s *Session) reloadIfActive(ctx context.Context) error {
	if s.State() != StateActive {
		return nil
	}
	return s.Reload(ctx)
}

// Snapshot returns a copy of the session for the UI.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		DeviceUID:      s.deviceUID,
		State:          s.state,
		View:           s.view,
		HasSeenWelcome: s.hasSeenWelcome,
		OrderLimits:    s.cart.Limits(),
		ActiveOrders:   copyOrders(s.activeOrders),
		ActiveCounts:   make(map[backend.CategoryType]int, len(s.counts)),
		Cart:           s.cart.Items(),
		Survey:         s.survey.State(),
		LastReloadAt:   s.lastReload,
	}
	for k, v := range s.counts {
		snap.ActiveCounts[k] = v
	}
	if s.patient != nil {
		p := *s.patient
		snap.Patient = &p
		snap.CanPatientOrder = s.canOrderLocked()
	}
	return snap
}

// AddToCart adds one unit of a product for the active patient.
func (s *Session) AddToCart(ctx context.Context, productID int64) error {
	patientID, err := s.orderingPatient()
	if err != nil {
		return err
	}
	if err := s.cart.Add(ctx, productID); err != nil {
		return err
	}
	s.touch(ctx, patientID)
	return nil
}

// SetCartQuantity changes a cart line. Lowering a quantity is allowed while ordering is blocked.
func (s *Session) SetCartQuantity(ctx context.Context, productID int64, qty int) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNoActivePatient
	}
	patientID, canOrder := s.patient.Patient.ID, s.canOrderLocked()
	s.mu.Unlock()

	if !canOrder && qty > s.cart.Items()[productID] {
		return ErrOrderingBlocked
	}
	if err := s.cart.SetQuantity(ctx, productID, qty); err != nil {
		return err
	}
	s.touch(ctx, patientID)
	return nil
}

// ClearCart empties the cart of the active patient.
func (s *Session) ClearCart(ctx context.Context) error {
	if s.State() != StateActive {
		return ErrNoActivePatient
	}
	return s.cart.Clear(ctx)
}

// Checkout places the cart as an order. On success the cart is emptied, the UI moves to the
// active orders and the session reloads. A limit rejection from the server also empties the cart.
func (s *Session) Checkout(ctx context.Context) (backend.Order, error) {
	patientID, err := s.orderingPatient()
	if err != nil {
		return backend.Order{}, err
	}
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return backend.Order{}, ErrEmptyCart
	}

	order, err := s.api.CreateOrder(ctx, s.deviceUID, lines)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.LimitReached {
			cat := apiErr.CategoryType.Normalize()
			usage := s.cart.Usage(cat)
			if clearErr := s.cart.Clear(ctx); clearErr != nil {
				s.log.Warn("failed to clear cart after limit rejection", "err", clearErr)
			}
			return backend.Order{}, &LimitError{Category: cat, Limit: apiErr.MaxAllowed, Usage: usage}
		}
		return backend.Order{}, fmt.Errorf("failed to place order: %w", err)
	}

	if err := s.cart.Clear(ctx); err != nil {
		s.log.Warn("failed to clear cart after checkout", "err", err)
	}
	s.mu.Lock()
	s.view = ViewActiveOrders
	s.mu.Unlock()
	s.log.Info("order placed", "order", order.ID, "lines", len(lines))

	s.touch(ctx, patientID)
	if err := s.Reload(ctx); err != nil {
		s.log.Warn("reload after checkout failed", "err", err)
	}
	return order, nil
}

// NavigateTo switches between the menu and the active orders.
func (s *Session) NavigateTo(view View) error {
	if view != ViewMenu && view != ViewActiveOrders {
		return fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNoActivePatient
	}
	s.view = view
	return nil
}

// MarkWelcomeSeen records that the current patient dismissed the welcome screen.
func (s *Session) MarkWelcomeSeen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return ErrNoActivePatient
	}
	if err := s.markers.MarkWelcomeSeen(ctx, s.patient.Patient.ID); err != nil {
		return err
	}
	s.hasSeenWelcome = true
	return nil
}

// Touch records patient activity on the kiosk.
func (s *Session) Touch(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return ErrNoActivePatient
	}
	patientID := s.patient.Patient.ID
	s.mu.Unlock()
	return s.markers.Touch(ctx, patientID)
}

// ActiveAssignment returns the assignment id of the current patient.
func (s *Session) ActiveAssignment() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.patient == nil {
		return 0, false
	}
	return s.patient.AssignmentID, true
}

func (s *Session) orderingPatient() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return 0, ErrNoActivePatient
	}
	if !s.canOrderLocked() {
		return 0, ErrOrderingBlocked
	}
	return s.patient.Patient.ID, nil
}

func (s *Session) touch(ctx context.Context, patientID int64) {
	if err := s.markers.Touch(ctx, patientID); err != nil {
		s.log.Warn("failed to record activity", "err", err)
	}
}

func boolPtr(b bool) *bool { return &b }
