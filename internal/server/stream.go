package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type realtimeEventPayload struct {
	Source    string   `json:"source"`
	IDs       []string `json:"ids,omitempty"`
	Timestamp string   `json:"timestamp"`
}

func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	c.SSEvent(realtimeEventHeartbeat, newRealtimeEventPayload(nil, h.clock().UTC()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, newRealtimeEventPayload(message.IDs, message.Timestamp))
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, newRealtimeEventPayload(nil, tick.UTC()))
			return true
		}
	})
}

func newRealtimeEventPayload(ids []string, timestamp time.Time) realtimeEventPayload {
	return realtimeEventPayload{
		Source:    realtimeSourceBackend,
		IDs:       ids,
		Timestamp: timestamp.UTC().Format(time.RFC3339Nano),
	}
}
