package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"roomservice-agent/internal/kiosk"
	"roomservice-agent/internal/staff"
	"roomservice-agent/internal/store"
)

// Handler holds shared dependencies for API handlers.
// kiosk and staff are nil when the matching role is disabled.
type Handler struct {
	store   store.Store
	webpush *webpush.Options
	kiosk   *kiosk.Agent
	staff   *staff.Dashboard
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, k *kiosk.Agent, d *staff.Dashboard) *Handler {
	return &Handler{
		store:   s,
		webpush: webpushOptions,
		kiosk:   k,
		staff:   d,
	}
}

func (h *Handler) pushEnabled() bool {
	return h.webpush != nil && h.webpush.VAPIDPublicKey != ""
}
