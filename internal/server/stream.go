package server

import (
	"io"
	"net/http"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/pushbus"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const streamEventHeartbeat = "heartbeat"

// handleStream serves the caller's chat, follow and timeline feeds as server-sent
// events. The subscription is registered before the user is marked live so the
// first reconciliation tick after connect is never lost.
func (h *httpHandler) handleStream(c *gin.Context) {
	user := currentUser(c).String()
	ctx := c.Request.Context()

	events, cleanup := h.bus.Subscribe(ctx, pushbus.UserTopics(user)...)
	defer cleanup()

	if h.presence.Connect(user) {
		h.logger.Info("stream connected", zap.String("user", user))
	}
	defer func() {
		if h.presence.Disconnect(user) {
			h.logger.Info("stream disconnected", zap.String("user", user))
		}
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Kind), event.Payload())
			return true
		case now := <-heartbeat.C:
			c.SSEvent(streamEventHeartbeat, gin.H{"timestamp": now.UTC().Unix()})
			return true
		}
	})
}
