package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomservice-agent/internal/model"
	"roomservice-agent/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// GetVAPIDPublicKey returns the key staff browsers subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if !h.pushEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}

// PutSubscription registers a staff browser for new-order pushes, or refreshes its keys.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	sub := &model.PushSubscription{Endpoint: req.Endpoint, P256DH: req.P256DH, Auth: req.Auth}
	if err := h.store.UpsertSubscription(c.Request.Context(), sub); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription unregisters a staff browser. Unknown endpoints are not an error.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.store.DeleteSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSubscription reports whether an endpoint is registered.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		badRequest(c, "endpoint is required")
		return
	}

	sub, err := h.store.Subscription(c.Request.Context(), endpoint)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "created_at": sub.CreatedAt})
}
