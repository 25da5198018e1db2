package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makerbridge/marketplace-backend/config"
	"github.com/makerbridge/marketplace-backend/internal/messaging/domain"
	"github.com/makerbridge/marketplace-backend/internal/messaging/service"
	notifdomain "github.com/makerbridge/marketplace-backend/internal/notifications/domain"
	"github.com/makerbridge/marketplace-backend/internal/realtime"
)

// NotificationLister is the poll source for the notification surface.
type NotificationLister interface {
	ListForUser(userID string, unreadOnly bool) ([]notifdomain.Notification, error)
}

// StreamHandler serves the push channel over SSE. Each connected client
// gets one realtime session; the session degrades to polling on its own
// when the transport goes quiet, so the stream keeps delivering either way.
type StreamHandler struct {
	svc    *service.MessageService
	notifs NotificationLister
	broker *realtime.Broker
	cfg    config.RealtimeConfig
}

func NewStreamHandler(svc *service.MessageService, notifs NotificationLister, broker *realtime.Broker, cfg config.RealtimeConfig) *StreamHandler {
	return &StreamHandler{svc: svc, notifs: notifs, broker: broker, cfg: cfg}
}

// Stream streams thread and notification updates for the resolved scope.
func (h *StreamHandler) Stream(c *gin.Context) {
	projectID := c.Param("public_id")
	actor := actorFrom(c)

	key, err := h.svc.Resolver().Authorize(c.Request.Context(), actor, projectID, c.Query("vendorId"), domain.OpRead)
	if err != nil {
		respondErr(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "streaming unsupported"})
		return
	}

	// Set SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // nginx: disable buffering

	channels := []string{realtime.UserChannel(actor.ID)}
	if key.VendorID == "" {
		channels = append(channels, realtime.ThreadPattern(key.ProjectID))
	} else {
		channels = append(channels, realtime.ThreadChannel(key.ProjectID, key.VendorID))
	}

	session := realtime.NewSession(h.broker, realtime.Options{
		Channels:          channels,
		PullMessages:      h.messagePull(actor, projectID, c.Query("vendorId"), c.Query("cursor")),
		PullNotifications: h.notificationPull(actor.ID),
		HeartbeatTimeout:  h.cfg.HeartbeatTimeout,
		MessagePoll:       h.cfg.MessagePollInterval,
		NotificationPoll:  h.cfg.NotificationPollInterval,
		ReconnectInterval: h.cfg.ReconnectInterval,
	})
	session.Start(c.Request.Context())
	defer session.Close()

	initial, _ := json.Marshal(gin.H{"thread": key, "state": session.State().String()})
	fmt.Fprintf(c.Writer, "event: initial\ndata: %s\n\n", initial)
	flusher.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			// Client disconnected; session teardown stops all timers.
			return

		case <-keepAlive.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			flusher.Flush()

		case u, ok := <-session.Updates():
			if !ok {
				return
			}
			data, err := json.Marshal(u)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", u.Kind, data)
			flusher.Flush()
		}
	}
}

// messagePull polls the thread store, advancing its cursor past returned
// rows so repeated polls never re-fetch seen messages.
func (h *StreamHandler) messagePull(actor domain.Actor, projectID, vendorScope, cursor string) realtime.PullFunc {
	return func(ctx context.Context) ([]realtime.Update, error) {
		msgs, err := h.svc.List(ctx, actor, projectID, vendorScope, cursor, 200)
		if err != nil {
			return nil, err
		}
		updates := make([]realtime.Update, 0, len(msgs))
		for _, m := range msgs {
			payload, merr := json.Marshal(m)
			if merr != nil {
				continue
			}
			updates = append(updates, realtime.Update{Kind: "message", ID: m.ID, Payload: payload})
		}
		if len(msgs) > 0 {
			cursor = msgs[len(msgs)-1].ID
		}
		return updates, nil
	}
}

func (h *StreamHandler) notificationPull(userID string) realtime.PullFunc {
	return func(ctx context.Context) ([]realtime.Update, error) {
		items, err := h.notifs.ListForUser(userID, true)
		if err != nil {
			return nil, err
		}
		updates := make([]realtime.Update, 0, len(items))
		for _, n := range items {
			payload, merr := json.Marshal(n)
			if merr != nil {
				continue
			}
			updates = append(updates, realtime.Update{Kind: "notification", ID: n.ID, Payload: payload})
		}
		return updates, nil
	}
}
