package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	msgdomain "github.com/makerbridge/marketplace-backend/internal/messaging/domain"
	notifdomain "github.com/makerbridge/marketplace-backend/internal/notifications/domain"
)

const (
	heartbeatChannel    = "rt:hb"                // heartbeat pings for liveness detection
	threadChannelPrefix = "rt:thread:"           // rt:thread:{project_id}:{vendor_id}
	userChannelPrefix   = "rt:user:"             // rt:user:{user_id}
)

// Update is the unit both push and poll deliver. Records are de-duplicated
// by (Kind, ID) on the client side.
type Update struct {
	Kind    string          `json:"kind"` // message | notification | heartbeat | status
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func ThreadChannel(projectID, vendorID string) string {
	return fmt.Sprintf("%s%s:%s", threadChannelPrefix, projectID, vendorID)
}

// ThreadPattern matches every vendor thread of a project; used by the
// admin monitoring stream.
func ThreadPattern(projectID string) string {
	return fmt.Sprintf("%s%s:*", threadChannelPrefix, projectID)
}

func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Broker is the push transport: a thin wrapper over redis pub/sub.
type Broker struct {
	client *redis.Client
}

func NewBroker(client *redis.Client) *Broker {
	return &Broker{client: client}
}

func (b *Broker) PublishMessage(ctx context.Context, msg msgdomain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return b.publish(ctx, ThreadChannel(msg.ProjectID, msg.VendorScopeID), Update{
		Kind:    "message",
		ID:      msg.ID,
		Payload: payload,
	})
}

func (b *Broker) PublishNotification(ctx context.Context, n notifdomain.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return b.publish(ctx, UserChannel(n.UserID), Update{
		Kind:    "notification",
		ID:      n.ID,
		Payload: payload,
	})
}

func (b *Broker) publish(ctx context.Context, channel string, u Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a pattern subscription and waits for the transport to
// acknowledge it. Exact channel names work as patterns too.
func (b *Broker) Subscribe(ctx context.Context, patterns ...string) (*redis.PubSub, error) {
	ps := b.client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return ps, nil
}

// StartHeartbeat publishes a ping on the heartbeat channel at the given
// cadence until ctx is cancelled. Sessions subscribe to it alongside their
// data channels so a silently dead transport is detectable.
func (b *Broker) StartHeartbeat(ctx context.Context, every time.Duration) {
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := b.publish(ctx, heartbeatChannel, Update{Kind: "heartbeat"}); err != nil {
					log.Printf("heartbeat publish: %v", err)
				}
			}
		}
	}()
}
