package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomservice-agent/internal/backend"
)

func (h *Handler) GetNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"notifications": h.staff.Notifications()})
}

// DismissNotification drops a pending new-order notification.
func (h *Handler) DismissNotification(c *gin.Context) {
	orderID, ok := idParam(c, "order_id")
	if !ok {
		return
	}
	if !h.staff.Dismiss(orderID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"orders": h.staff.Queue()})
}

type statusRequest struct {
	Status backend.OrderStatus `json:"status" binding:"required"`
	Note   string              `json:"note"`
}

// ChangeOrderStatus moves an order through the kitchen workflow.
func (h *Handler) ChangeOrderStatus(c *gin.Context) {
	orderID, ok := idParam(c, "order_id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	order, err := h.staff.ChangeOrderStatus(c.Request.Context(), orderID, req.Status, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type limitsRequest struct {
	Limits backend.OrderLimits `json:"order_limits" binding:"required"`
}

// UpdateLimits replaces the per-category limits of a patient assignment.
func (h *Handler) UpdateLimits(c *gin.Context) {
	assignmentID, ok := idParam(c, "assignment_id")
	if !ok {
		return
	}
	var req limitsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	for category, limit := range req.Limits {
		if limit < 0 {
			badRequest(c, "limit for "+string(category)+" must not be negative")
			return
		}
	}
	if err := h.staff.UpdateLimits(c.Request.Context(), assignmentID, req.Limits); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
