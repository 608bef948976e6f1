package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// VAPIDPublicKey serves the VAPID public key as a JSON string. The key never
// changes while the process runs, so the body and its ETag are built once and
// clients may keep it for maxAge.
func (h *Handler) VAPIDPublicKey(maxAge time.Duration) gin.HandlerFunc {
	var key string
	if h.keys != nil {
		key = h.keys.PublicKey()
	}
	if key == "" {
		return func(c *gin.Context) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		}
	}

	body, _ := json.Marshal(key)
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	cacheControl := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))

	return func(c *gin.Context) {
		c.Header("Cache-Control", cacheControl)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}
