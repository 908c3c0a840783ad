package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"roomservice-agent/internal/logger"
)

// HandlerFunc handles one message type. A returned error is logged by the router.
type HandlerFunc func(ctx context.Context, msg Message) error

type subscription struct {
	id      string
	msgType string
	fn      HandlerFunc
}

// Router dispatches messages by type to registered handlers. Handlers survive
// reconnects because they are registered here, not on the Conn.
type Router struct {
	mu   sync.RWMutex
	subs map[string][]subscription
	log  *log.Logger
}

func NewRouter() *Router {
	return &Router{
		subs: make(map[string][]subscription),
		log:  logger.With("component", "router"),
	}
}

// Handle registers fn for msgType and returns a subscription id for Remove.
func (r *Router) Handle(msgType string, fn HandlerFunc) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[msgType] = append(r.subs[msgType], subscription{id: id, msgType: msgType, fn: fn})
	return id
}

// Remove unregisters a handler. Unknown ids are ignored.
func (r *Router) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for msgType, subs := range r.subs {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			r.subs[msgType] = append(subs[:i:i], subs[i+1:]...)
			if len(r.subs[msgType]) == 0 {
				delete(r.subs, msgType)
			}
			return
		}
	}
}

// Dispatch delivers msg to every handler of its type in registration order.
// Unknown types are ignored.
func (r *Router) Dispatch(ctx context.Context, msg Message) {
	r.mu.RLock()
	subs := r.subs[msg.Type]
	r.mu.RUnlock()

	if len(subs) == 0 {
		r.log.Debug("no handler for message", "type", msg.Type)
		return
	}
	for _, s := range subs {
		if err := r.invoke(ctx, s, msg); err != nil {
			r.log.Error("handler failed", "type", msg.Type, "subscription", s.id, "err", err)
		}
	}
}

func (r *Router) invoke(ctx context.Context, s subscription, msg Message) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return s.fn(ctx, msg)
}
