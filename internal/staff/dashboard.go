package staff

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"roomservice-agent/config"
	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/notification"
	"roomservice-agent/internal/realtime"
)

// queueStatuses are the orders the kitchen still has to work on.
var queueStatuses = []backend.OrderStatus{backend.StatusPlaced, backend.StatusPreparing}

// API is the staff side of the backend.
type API interface {
	OrderQueue(ctx context.Context, statuses ...backend.OrderStatus) ([]backend.Order, error)
	ChangeOrderStatus(ctx context.Context, orderID int64, to backend.OrderStatus, note string) (backend.Order, error)
	UpdateLimits(ctx context.Context, assignmentID int64, limits backend.OrderLimits) error
}

// Notifier relays new orders outside the dashboard.
type Notifier interface {
	Dispatch(n notification.Notice)
}

// Notification is a new order staff has not dismissed yet.
type Notification struct {
	OrderID    int64     `json:"order_id"`
	RoomCode   string    `json:"room_code"`
	DeviceUID  string    `json:"device_uid,omitempty"`
	PlacedAt   time.Time `json:"placed_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// Dashboard keeps the staff view of incoming orders in sync with the staff socket.
type Dashboard struct {
	api      API
	notifier Notifier
	log      *log.Logger

	Conn   *realtime.Conn
	Router *realtime.Router

	mu      sync.Mutex
	pending map[int64]Notification
	queue   []backend.Order

	ctxMu  sync.Mutex
	runCtx context.Context
}

// StaffURL is the socket address of the staff dashboard.
func StaffURL(wsBase, token string) string {
	return fmt.Sprintf("%s/ws/staff/orders/?token=%s", wsBase, url.QueryEscape(token))
}

// NewDashboard builds the staff role. notifier may be nil.
func NewDashboard(cfg *config.Config, token string, api API, notifier Notifier, opts ...realtime.Option) *Dashboard {
	d := &Dashboard{
		api:      api,
		notifier: notifier,
		log:      logger.With("component", "staff"),
		Router:   realtime.NewRouter(),
		pending:  make(map[int64]Notification),
		runCtx:   context.Background(),
	}
	d.Router.Handle(realtime.TypeNewOrder, d.onNewOrder)
	d.Router.Handle(realtime.TypeOrderUpdated, d.onOrderUpdated)
	d.Router.Handle(realtime.TypePatientAssignmentEnded, d.onAssignmentEnded)

	policy := realtime.Policy{
		Interval:    cfg.Staff.Reconnect.Interval(),
		MaxAttempts: cfg.Staff.Reconnect.MaxAttempts,
	}
	opts = append([]realtime.Option{
		realtime.WithPolicy(policy),
		realtime.WithDialTimeout(cfg.Backend.Timeout),
		realtime.WithLogger(logger.With("component", "realtime", "role", "staff")),
	}, opts...)
	d.Conn = realtime.New(StaffURL(cfg.Backend.WSBaseURL, token), realtime.Handlers{
		OnOpen: d.onOpen,
		OnMessage: func(msg realtime.Message) {
			d.Router.Dispatch(d.context(), msg)
		},
		OnError: func(err error) {
			d.log.Warn("staff socket error", "err", err)
		},
	}, opts...)
	return d
}

// Run loads the queue, connects the staff socket and blocks until ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	d.ctxMu.Lock()
	d.runCtx = ctx
	d.ctxMu.Unlock()

	if err := d.Reload(ctx); err != nil {
		d.log.Warn("initial queue load failed", "err", err)
	}
	d.Conn.Connect()
	<-ctx.Done()

	d.log.Info("shutting down staff role")
	d.Conn.Disconnect()
	return nil
}

func (d *Dashboard) Connected() bool {
	return d.Conn.IsConnected()
}

// Reload refreshes the order queue.
func (d *Dashboard) Reload(ctx context.Context) error {
	orders, err := d.api.OrderQueue(ctx, queueStatuses...)
	if err != nil {
		return fmt.Errorf("failed to load order queue: %w", err)
	}
	d.mu.Lock()
	d.queue = orders
	d.mu.Unlock()
	return nil
}

// Notifications returns the pending new-order notifications, oldest first.
func (d *Dashboard) Notifications() []Notification {
	d.mu.Lock()
	out := make([]Notification, 0, len(d.pending))
	for _, n := range d.pending {
		out = append(out, n)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PlacedAt.Equal(out[j].PlacedAt) {
			return out[i].PlacedAt.Before(out[j].PlacedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// Dismiss drops a pending notification. It reports whether one was pending.
func (d *Dashboard) Dismiss(orderID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[orderID]
	delete(d.pending, orderID)
	return ok
}

// Queue returns a copy of the current order queue.
func (d *Dashboard) Queue() []backend.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]backend.Order, len(d.queue))
	for i, o := range d.queue {
		o.Items = append([]backend.OrderItem(nil), o.Items...)
		out[i] = o
	}
	return out
}

// ChangeOrderStatus moves an order and refreshes the queue.
func (d *Dashboard) ChangeOrderStatus(ctx context.Context, orderID int64, to backend.OrderStatus, note string) (backend.Order, error) {
	order, err := d.api.ChangeOrderStatus(ctx, orderID, to, note)
	if err != nil {
		return backend.Order{}, err
	}
	if to.Terminal() {
		d.Dismiss(orderID)
	}
	if err := d.Reload(ctx); err != nil {
		d.log.Warn("queue reload after status change failed", "err", err)
	}
	return order, nil
}

func (d *Dashboard) UpdateLimits(ctx context.Context, assignmentID int64, limits backend.OrderLimits) error {
	return d.api.UpdateLimits(ctx, assignmentID, limits)
}

func (d *Dashboard) onNewOrder(ctx context.Context, msg realtime.Message) error {
	var p realtime.NewOrder
	if err := msg.Decode(&p); err != nil {
		return err
	}

	d.mu.Lock()
	_, seen := d.pending[p.OrderID]
	d.pending[p.OrderID] = Notification{
		OrderID:    p.OrderID,
		RoomCode:   p.RoomCode,
		DeviceUID:  p.DeviceUID,
		PlacedAt:   p.PlacedAt,
		ReceivedAt: time.Now(),
	}
	d.mu.Unlock()

	if !seen && d.notifier != nil {
		d.notifier.Dispatch(notification.Notice{OrderID: p.OrderID, RoomCode: p.RoomCode})
	}
	d.log.Info("new order", "order", p.OrderID, "room", p.RoomCode)
	return d.Reload(ctx)
}

func (d *Dashboard) onOrderUpdated(ctx context.Context, msg realtime.Message) error {
	var p realtime.OrderUpdated
	if err := msg.Decode(&p); err != nil {
		return err
	}
	if backend.OrderStatus(p.Status).Terminal() {
		d.Dismiss(p.OrderID)
	}
	return d.Reload(ctx)
}

func (d *Dashboard) onAssignmentEnded(ctx context.Context, msg realtime.Message) error {
	var p realtime.PatientAssignmentEnded
	if err := msg.Decode(&p); err != nil {
		return err
	}
	return d.Reload(ctx)
}

// onOpen reloads because orders may have moved while the socket was down.
func (d *Dashboard) onOpen() {
	if err := d.Reload(d.context()); err != nil {
		d.log.Warn("queue reload after connect failed", "err", err)
	}
}

func (d *Dashboard) context() context.Context {
	d.ctxMu.Lock()
	defer d.ctxMu.Unlock()
	return d.runCtx
}
