package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"push-demo-backend/internal/model"
	"push-demo-backend/internal/vapid"
)

type subscriptionKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type browserSubscription struct {
	Endpoint       string            `json:"endpoint" binding:"required"`
	ExpirationTime *float64          `json:"expirationTime"`
	Keys           *subscriptionKeys `json:"keys" binding:"required"`
}

// subscriptionRequest is the body the service worker glue posts: the
// browser's PushSubscription plus optional device information.
type subscriptionRequest struct {
	Subscription *browserSubscription `json:"subscription" binding:"required"`
	DeviceID     string               `json:"deviceId"`
}

func bindSubscription(c *gin.Context) (*browserSubscription, bool) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	if _, err := vapid.Origin(req.Subscription.Endpoint); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return req.Subscription, true
}

// Subscribe stores the posted subscription under a freshly generated owner id
// and echoes the stored row. Registering an already known key returns the
// existing row unchanged.
func (h *Handler) Subscribe(c *gin.Context) {
	sub, ok := bindSubscription(c)
	if !ok {
		return
	}

	stored, err := h.store.Upsert(c.Request.Context(), model.PushSubscription{
		OwnerID:        uuid.NewString(),
		Endpoint:       sub.Endpoint,
		ExpirationTime: sub.ExpirationTime,
		P256DH:         sub.Keys.P256DH,
		Auth:           sub.Keys.Auth,
	})
	if err != nil {
		storeError(c, "subscribe", err)
		return
	}

	c.JSON(http.StatusOK, stored)
}

// Unsubscribe removes the posted subscription. Unknown subscriptions are ignored.
func (h *Handler) Unsubscribe(c *gin.Context) {
	sub, ok := bindSubscription(c)
	if !ok {
		return
	}

	if err := h.store.Remove(c.Request.Context(), model.PushSubscription{
		Endpoint: sub.Endpoint,
		P256DH:   sub.Keys.P256DH,
		Auth:     sub.Keys.Auth,
	}); err != nil {
		storeError(c, "unsubscribe", err)
		return
	}

	c.Status(http.StatusNoContent)
}
