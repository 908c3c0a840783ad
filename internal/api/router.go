package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"roomservice-agent/config"
	"roomservice-agent/internal/logger"
	"roomservice-agent/internal/mw"
)

// NewRouter creates and configures the local agent API.
func NewRouter(cfg *config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(logger.With("component", "http")))

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/status", h.GetStatus)

		if h.kiosk != nil {
			api.GET("/catalog/products", caching, h.GetProducts)

			k := api.Group("/kiosk")
			k.GET("/state", h.GetKioskState)
			k.POST("/cart/items", h.AddCartItem)
			k.PUT("/cart/items/:product_id", h.SetCartItem)
			k.DELETE("/cart", h.ClearCart)
			k.POST("/checkout", h.Checkout)
			k.POST("/view", h.SetView)
			k.POST("/welcome", h.MarkWelcomeSeen)
			k.POST("/activity", h.RecordActivity)
			k.POST("/orders/:order_id/satisfaction", h.RateOrder)

			k.GET("/survey", h.GetSurvey)
			k.GET("/survey/items", h.GetSurveyItems)
			k.POST("/survey/product-ratings", h.SubmitProductRatings)
			k.POST("/survey/staff-rating", h.SubmitStaffRating)
			k.POST("/survey/stay-rating", h.CompleteSurvey)
			k.DELETE("/survey", h.CloseSurvey)
		}

		// Push subscriptions belong to staff browsers.
		if h.staff != nil {
			api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
			api.GET("/subscriptions", h.GetSubscription)
			api.PUT("/subscriptions", h.PutSubscription)
			api.DELETE("/subscriptions", h.DeleteSubscription)

			s := api.Group("/staff")
			s.GET("/notifications", h.GetNotifications)
			s.DELETE("/notifications/:order_id", h.DismissNotification)
			s.GET("/queue", h.GetQueue)
			s.PATCH("/orders/:order_id/status", h.ChangeOrderStatus)
			s.PATCH("/assignments/:assignment_id/limits", h.UpdateLimits)
		}
	}

	return r
}
