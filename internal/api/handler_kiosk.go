package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomservice-agent/internal/kiosk"
)

// GetKioskState returns the session snapshot the kiosk UI renders from.
func (h *Handler) GetKioskState(c *gin.Context) {
	c.JSON(http.StatusOK, h.kiosk.Session.Snapshot())
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

// AddCartItem adds one unit of a product to the cart.
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Session.AddToCart(c.Request.Context(), req.ProductID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": h.kiosk.Cart.Items()})
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// SetCartItem sets the quantity of a cart line. Zero or less removes it.
func (h *Handler) SetCartItem(c *gin.Context) {
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Session.SetCartQuantity(c.Request.Context(), productID, *req.Quantity); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": h.kiosk.Cart.Items()})
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.kiosk.Session.ClearCart(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Checkout places the cart as an order.
func (h *Handler) Checkout(c *gin.Context) {
	order, err := h.kiosk.Session.Checkout(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

type viewRequest struct {
	View kiosk.View `json:"view" binding:"required"`
}

func (h *Handler) SetView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Session.NavigateTo(req.View); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkWelcomeSeen(c *gin.Context) {
	if err := h.kiosk.Session.MarkWelcomeSeen(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RecordActivity extends the inactivity window of the current patient.
func (h *Handler) RecordActivity(c *gin.Context) {
	if err := h.kiosk.Session.Touch(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type satisfactionRequest struct {
	Rating  int    `json:"satisfaction_rating" binding:"required"`
	Comment string `json:"comment"`
}

// RateOrder sends the satisfaction rating of one delivered order.
func (h *Handler) RateOrder(c *gin.Context) {
	orderID, ok := idParam(c, "order_id")
	if !ok {
		return
	}
	var req satisfactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.RateOrder(c.Request.Context(), orderID, req.Rating, req.Comment); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetProducts lists the catalog.
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.kiosk.Catalog.Products(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}
