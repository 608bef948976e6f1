package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"push-demo-backend/internal/model"
	"push-demo-backend/internal/notification"
)

// maxSendDelay caps the ?delay= test hook.
const maxSendDelay = 5 * time.Minute

// Send queues a notification for every device of the owner in the path.
// Development only: production answers 403.
func (h *Handler) Send(c *gin.Context) {
	if h.production {
		c.JSON(http.StatusForbidden, gin.H{"error": "sending is only available in development"})
		return
	}

	ownerID := c.Param("ownerId")
	if ownerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner id is required"})
		return
	}

	var delay time.Duration
	if raw := c.Query("delay"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "delay must be a non-negative number of milliseconds"})
			return
		}
		delay = min(time.Duration(ms)*time.Millisecond, maxSendDelay)
	}

	n := model.NewNotification("")
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&n); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	n.Normalize()
	if n.Tag == "" {
		n.Tag = model.TagNotify
	}

	if !h.queue.Dispatch(notification.Job{OwnerID: ownerID, Notification: n, Delay: delay}) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "send queue is full, try again later"})
		return
	}

	c.Status(http.StatusAccepted)
}
