package kiosk

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"

	"roomservice-agent/config"
	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/realtime"
)

// API is everything the kiosk role needs from the backend.
type API interface {
	PatientAPI
	FeedbackAPI
	ProductSource
	SubmitOrderFeedback(ctx context.Context, orderID int64, fb backend.OrderFeedback) error
}

// Store is the durable device state used by the kiosk role.
type Store interface {
	CartStore
	MarkerStore
}

// Agent wires the kiosk socket to the session, survey and cart of one device.
type Agent struct {
	deviceUID string
	api       API
	log       *log.Logger

	Conn    *realtime.Conn
	Router  *realtime.Router
	Session *Session
	Survey  *Survey
	Cart    *Cart
	Catalog *Catalog
	Poller  *Poller

	ctxMu  sync.Mutex
	runCtx context.Context
}

// KioskURL is the socket address of a kiosk device.
func KioskURL(wsBase, deviceUID string) string {
	return fmt.Sprintf("%s/ws/kiosk/orders/?device_uid=%s", wsBase, url.QueryEscape(deviceUID))
}

// NewAgent builds the kiosk role. Extra options are passed to the socket.
func NewAgent(cfg *config.Config, api API, st Store, opts ...realtime.Option) *Agent {
	uid := cfg.Kiosk.DeviceUID
	a := &Agent{
		deviceUID: uid,
		api:       api,
		log:       logger.With("component", "kiosk", "device", uid),
		Router:    realtime.NewRouter(),
		runCtx:    context.Background(),
	}
	a.Catalog = NewCatalog(api, cfg.Kiosk.CatalogCacheTTL)
	a.Cart = NewCart(uid, st, a.Catalog)
	a.Survey = NewSurvey(api)
	a.Session = NewSession(uid, api, a.Cart, a.Survey, NewMarkers(uid, st, cfg.Kiosk.InactivityExpiry))
	a.Session.Register(a.Router)
	a.Poller = NewPoller(a.Session, cfg.Kiosk.PollInterval)

	policy := realtime.Policy{
		Interval:    cfg.Kiosk.Reconnect.Interval(),
		MaxAttempts: cfg.Kiosk.Reconnect.MaxAttempts,
	}
	opts = append([]realtime.Option{
		realtime.WithPolicy(policy),
		realtime.WithDialTimeout(cfg.Backend.Timeout),
		realtime.WithLogger(logger.With("component", "realtime", "role", "kiosk")),
	}, opts...)
	a.Conn = realtime.New(KioskURL(cfg.Backend.WSBaseURL, uid), realtime.Handlers{
		OnOpen: a.onOpen,
		OnMessage: func(msg realtime.Message) {
			a.Router.Dispatch(a.context(), msg)
		},
		OnError: func(err error) {
			a.log.Warn("kiosk socket error", "err", err)
		},
	}, opts...)
	return a
}

// Run restores the cart, connects the socket and polls for a patient until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.ctxMu.Lock()
	a.runCtx = ctx
	a.ctxMu.Unlock()

	if err := a.Cart.Load(ctx); err != nil {
		a.log.Warn("failed to restore cart", "err", err)
	}
	if err := a.Session.Reload(ctx); err != nil {
		a.log.Warn("initial reload failed", "err", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Poller.Run(ctx)
	}()

	a.Conn.Connect()
	<-ctx.Done()

	a.log.Info("shutting down kiosk role")
	a.Conn.Disconnect()
	wg.Wait()
	return nil
}

// Connected reports whether the kiosk socket is open.
func (a *Agent) Connected() bool {
	return a.Conn.IsConnected()
}

// RateOrder sends the satisfaction rating of a single delivered order.
func (a *Agent) RateOrder(ctx context.Context, orderID int64, rating int, comment string) error {
	if !validRating(rating) {
		return fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	return a.api.SubmitOrderFeedback(ctx, orderID, backend.OrderFeedback{
		DeviceUID:          a.deviceUID,
		SatisfactionRating: rating,
		Comment:            comment,
	})
}

// onOpen reloads because events may have been missed while the socket was down.
func (a *Agent) onOpen() {
	if err := a.Session.Reload(a.context()); err != nil {
		a.log.Warn("reload after connect failed", "err", err)
	}
}

func (a *Agent) context() context.Context {
	a.ctxMu.Lock()
	defer a.ctxMu.Unlock()
	return a.runCtx
}
