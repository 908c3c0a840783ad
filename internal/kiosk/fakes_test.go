package kiosk

import (
	"context"
	"sync"

	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/model"
	"roomservice-agent/internal/store"
)

// fakeAPI is a scripted backend.
type fakeAPI struct {
	mu sync.Mutex

	patient    *backend.ActivePatient
	patientErr error
	orders     []backend.Order
	products   []backend.Product
	delivered  []backend.Order

	createErr   error
	created     [][]backend.CreateItem
	feedbackErr error
	feedback    []backend.CompleteFeedback
	rated       []backend.OrderFeedback

	patientCalls  int
	productCalls  int
	deliveredCall int

	// beforePatientReturn runs inside ActivePatient after the response is chosen.
	beforePatientReturn func()
	// beforeFeedbackReturn runs inside SubmitCompleteFeedback without the fake's lock held.
	beforeFeedbackReturn func()
}

func (f *fakeAPI) ActivePatient(ctx context.Context, deviceUID string) (backend.ActivePatient, error) {
	f.mu.Lock()
	f.patientCalls++
	p, err, hook := f.patient, f.patientErr, f.beforePatientReturn
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return backend.ActivePatient{}, err
	}
	if p == nil {
		return backend.ActivePatient{}, backend.ErrNoPatient
	}
	return *p, nil
}

func (f *fakeAPI) ActiveOrders(ctx context.Context, deviceUID string) ([]backend.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.Order(nil), f.orders...), nil
}

func (f *fakeAPI) CreateOrder(ctx context.Context, deviceUID string, items []backend.CreateItem) (backend.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return backend.Order{}, f.createErr
	}
	f.created = append(f.created, items)
	return backend.Order{ID: int64(100 + len(f.created)), Status: backend.StatusPlaced}, nil
}

func (f *fakeAPI) DeliveredOrders(ctx context.Context, assignmentID int64) ([]backend.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveredCall++
	return append([]backend.Order(nil), f.delivered...), nil
}

func (f *fakeAPI) SubmitCompleteFeedback(ctx context.Context, fb backend.CompleteFeedback) error {
	f.mu.Lock()
	f.feedback = append(f.feedback, fb)
	err, hook := f.feedbackErr, f.beforeFeedbackReturn
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeAPI) SubmitOrderFeedback(ctx context.Context, orderID int64, fb backend.OrderFeedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rated = append(f.rated, fb)
	return nil
}

func (f *fakeAPI) Products(ctx context.Context) ([]backend.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productCalls++
	return append([]backend.Product(nil), f.products...), nil
}

func (f *fakeAPI) setPatient(p *backend.ActivePatient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patient = p
}

func (f *fakeAPI) setOrders(orders []backend.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = orders
}

func (f *fakeAPI) PatientCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patientCalls
}

func (f *fakeAPI) Feedback() []backend.CompleteFeedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.CompleteFeedback(nil), f.feedback...)
}

// memStore keeps device state in maps.
type memStore struct {
	mu      sync.Mutex
	carts   map[string]map[int64]int
	markers map[string]model.KioskMarker
}

func newMemStore() *memStore {
	return &memStore{
		carts:   make(map[string]map[int64]int),
		markers: make(map[string]model.KioskMarker),
	}
}

func (m *memStore) CartItems(ctx context.Context, deviceUID string) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]int)
	for id, qty := range m.carts[deviceUID] {
		out[id] = qty
	}
	return out, nil
}

func (m *memStore) SetCartQuantity(ctx context.Context, deviceUID string, productID int64, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.carts[deviceUID] == nil {
		m.carts[deviceUID] = make(map[int64]int)
	}
	if qty <= 0 {
		delete(m.carts[deviceUID], productID)
		return nil
	}
	m.carts[deviceUID][productID] = qty
	return nil
}

func (m *memStore) ClearCart(ctx context.Context, deviceUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, deviceUID)
	return nil
}

func (m *memStore) Marker(ctx context.Context, deviceUID string) (*model.KioskMarker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.markers[deviceUID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &marker, nil
}

func (m *memStore) SaveMarker(ctx context.Context, marker *model.KioskMarker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markers[marker.DeviceUID] = *marker
	return nil
}

func (m *memStore) DeleteMarker(ctx context.Context, deviceUID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, deviceUID)
	return nil
}

func (m *memStore) hasMarker(deviceUID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[deviceUID]
	return ok
}

const (
	testDevice = "ipad-101"

	productWater  int64 = 1
	productJuice  int64 = 2
	productChips  int64 = 3
	productSoup   int64 = 4
	productPillow int64 = 5
)

func testProducts() []backend.Product {
	return []backend.Product{
		{ID: productWater, Name: "Water", CategoryType: backend.CategoryDrink, IsAvailable: true},
		{ID: productJuice, Name: "Juice", CategoryType: backend.CategoryDrink, IsAvailable: true},
		{ID: productChips, Name: "Chips", CategoryType: backend.CategorySnack, IsAvailable: true},
		{ID: productSoup, Name: "Soup", CategoryType: backend.CategoryFood, IsAvailable: true},
		{ID: productPillow, Name: "Pillow", CategoryType: "", IsAvailable: true},
	}
}

func testPatient(assignmentID, patientID int64, limits backend.OrderLimits) *backend.ActivePatient {
	return &backend.ActivePatient{
		AssignmentID: assignmentID,
		DeviceUID:    testDevice,
		Patient:      backend.Patient{ID: patientID, FullName: "Ana Ruiz"},
		Room:         backend.Room{Code: "101"},
		Staff:        backend.Staff{FullName: "Nurse Joy"},
		OrderLimits:  limits,
	}
}

