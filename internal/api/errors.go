package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"roomservice-agent/internal/backend"
	"roomservice-agent/internal/kiosk"
)

// errorStatus maps domain errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, kiosk.ErrLimitReached),
		errors.Is(err, kiosk.ErrNoActivePatient),
		errors.Is(err, kiosk.ErrWrongStep),
		errors.Is(err, kiosk.ErrSurveyNotActive),
		errors.Is(err, kiosk.ErrSurveyReassigned),
		errors.Is(err, kiosk.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, kiosk.ErrOrderingBlocked):
		return http.StatusForbidden
	case errors.Is(err, kiosk.ErrEmptyCart),
		errors.Is(err, kiosk.ErrInvalidView),
		errors.Is(err, kiosk.ErrNoAssignment),
		errors.Is(err, kiosk.ErrIncompleteRatings),
		errors.Is(err, kiosk.ErrInvalidRating),
		errors.Is(err, kiosk.ErrMissingSurveyData):
		return http.StatusBadRequest
	case errors.Is(err, kiosk.ErrUnknownProduct), errors.Is(err, backend.ErrNoPatient):
		return http.StatusNotFound
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error}. Limit rejections carry the category details.
func writeError(c *gin.Context, err error) {
	status := errorStatus(err)

	var limitErr *kiosk.LimitError
	if errors.As(err, &limitErr) {
		c.AbortWithStatusJSON(status, gin.H{
			"error":         limitErr.Error(),
			"limit_reached": true,
			"category_type": limitErr.Category,
			"limit":         limitErr.Limit,
			"usage":         limitErr.Usage,
		})
		return
	}

	body := gin.H{"error": err.Error()}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		body["fields"] = apiErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
