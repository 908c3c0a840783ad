package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roomservice-agent/internal/backend"
)

func (h *Handler) GetSurvey(c *gin.Context) {
	c.JSON(http.StatusOK, h.kiosk.Survey.State())
}

// GetSurveyItems returns the delivered orders the patient is asked to rate.
func (h *Handler) GetSurveyItems(c *gin.Context) {
	orders, err := h.kiosk.Survey.LoadItems(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type productRatingsRequest struct {
	Ratings backend.ProductRatings `json:"product_ratings"`
}

func (h *Handler) SubmitProductRatings(c *gin.Context) {
	var req productRatingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Survey.SubmitProductRatings(c.Request.Context(), req.Ratings); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.kiosk.Survey.State())
}

type ratingRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *Handler) SubmitStaffRating(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Survey.SubmitStaffRating(req.Rating); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.kiosk.Survey.State())
}

// CompleteSurvey submits the stay rating and with it the whole survey.
func (h *Handler) CompleteSurvey(c *gin.Context) {
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.kiosk.Survey.Complete(c.Request.Context(), req.Rating, req.Comment); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CloseSurvey(c *gin.Context) {
	h.kiosk.Survey.Close()
	c.Status(http.StatusNoContent)
}
