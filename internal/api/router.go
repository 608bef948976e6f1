package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"push-demo-backend/config"
	"push-demo-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.Default()
	r.Use(mw.SecurityHeaders(cfg.IsProduction()))

	// Idle client limiters are dropped after ten minutes
	rateLimiter := mw.RateLimiter(mw.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, 10*time.Minute))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	push := r.Group("/api/push")
	push.Use(rateLimiter)
	{
		push.GET("/vapidpublickey", h.VAPIDPublicKey(time.Duration(cfg.CacheTTLSeconds)*time.Second))
		push.POST("/subscribe", h.Subscribe)
		push.POST("/unsubscribe", h.Unsubscribe)
		push.POST("/send/:ownerId", h.Send)
	}

	return r
}
