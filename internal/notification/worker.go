package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/charmbracelet/log"

	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore lists staff push subscriptions and drops expired ones.
type SubscriptionStore interface {
	Subscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Notice is a new order staff should hear about.
type Notice struct {
	OrderID  int64
	RoomCode string
}

// Payload is what the staff service worker receives.
type Payload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	OrderID int64  `json:"order_id"`
	Tag     string `json:"tag"`
	URL     string `json:"url"`
}

func NewPayload(n Notice) Payload {
	body := fmt.Sprintf("Order #%d has been received", n.OrderID)
	if n.RoomCode != "" {
		body = fmt.Sprintf("Order #%d from room %s has been received", n.OrderID, n.RoomCode)
	}
	return Payload{
		Title:   "New order received",
		Body:    body,
		OrderID: n.OrderID,
		Tag:     fmt.Sprintf("order-%d", n.OrderID),
		URL:     "/staff/orders",
	}
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	store   SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	log     *log.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, store SubscriptionStore, webpushOptions *webpush.Options) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size*16),
		store:   store,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     logger.With("component", "push"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("worker started", "worker", id)
	for {
		select {
		case n := <-wp.jobs:
			wp.log.Debug("worker processing order", "worker", id, "order", n.OrderID)
			wp.notifyAll(ctx, n)
		case <-ctx.Done():
			wp.log.Debug("worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues a notice. It never blocks the socket that produced it: when the queue is
// full the notice is dropped.
func (wp *WorkerPool) Dispatch(n Notice) {
	select {
	case wp.jobs <- n:
	default:
		wp.log.Warn("push queue full, dropping notice", "order", n.OrderID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Notice {
	return wp.jobs
}

// notifyAll sends the notice to every stored subscription.
func (wp *WorkerPool) notifyAll(ctx context.Context, n Notice) {
	subscriptions, err := wp.store.Subscriptions(ctx)
	if err != nil {
		wp.log.Error("failed to fetch subscriptions", "order", n.OrderID, "err", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(NewPayload(n))
	if err != nil {
		wp.log.Error("failed to encode push payload", "order", n.OrderID, "err", err)
		return
	}

	wp.log.Info("sending push notifications", "order", n.OrderID, "count", len(subscriptions))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Warn("failed to send notification", "endpoint", sub.Endpoint, "err", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("subscription expired, deleting", "endpoint", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", "endpoint", sub.Endpoint, "err", err)
		}
	}
}
