package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type roleStatus struct {
	Enabled          bool `json:"enabled"`
	Connected        bool `json:"connected"`
	ReconnectAttempt int  `json:"reconnect_attempt"`
}

// GetStatus reports the connection state of each role.
func (h *Handler) GetStatus(c *gin.Context) {
	resp := gin.H{}

	kiosk := roleStatus{}
	if h.kiosk != nil {
		kiosk = roleStatus{
			Enabled:          true,
			Connected:        h.kiosk.Connected(),
			ReconnectAttempt: h.kiosk.Conn.ReconnectAttempt(),
		}
		resp["session_state"] = h.kiosk.Session.State()
	}
	resp["kiosk"] = kiosk

	staff := roleStatus{}
	if h.staff != nil {
		staff = roleStatus{
			Enabled:          true,
			Connected:        h.staff.Connected(),
			ReconnectAttempt: h.staff.Conn.ReconnectAttempt(),
		}
	}
	resp["staff"] = staff

	c.JSON(http.StatusOK, resp)
}
