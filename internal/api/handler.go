package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"push-demo-backend/internal/notification"
	"push-demo-backend/internal/store"
)

// PublicKeyProvider exposes the application server key browsers subscribe with.
type PublicKeyProvider interface {
	PublicKey() string
}

// JobQueue accepts send jobs without blocking.
type JobQueue interface {
	Dispatch(job notification.Job) bool
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	keys       PublicKeyProvider
	queue      JobQueue
	production bool
}

// NewHandler creates a new API handler. In production the send endpoint is refused.
func NewHandler(s store.Store, keys PublicKeyProvider, queue JobQueue, production bool) *Handler {
	return &Handler{
		store:      s,
		keys:       keys,
		queue:      queue,
		production: production,
	}
}

// storeError answers a failed store call: 503 when the backend is unreachable,
// 500 otherwise.
func storeError(c *gin.Context, op string, err error) {
	log.Printf("%s: %v", op, err)
	if errors.Is(err, store.ErrStorageUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "subscription storage is unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}
