package integration

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msgdomain "github.com/makerbridge/marketplace-backend/internal/messaging/domain"
	notifdomain "github.com/makerbridge/marketplace-backend/internal/notifications/domain"
	notifservice "github.com/makerbridge/marketplace-backend/internal/notifications/service"
	"github.com/makerbridge/marketplace-backend/internal/realtime"
)

type memNotifStore struct {
	mu    sync.Mutex
	items []notifdomain.Notification
}

func (s *memNotifStore) Create(n *notifdomain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == "" {
		n.ID = "n-" + n.UserID
	}
	n.CreatedAt = time.Now().UTC()
	s.items = append(s.items, *n)
	return nil
}

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

// A message append fans out to the counterpart, the notification record is
// persisted, and the recipient's live session receives the push — the full
// delivery path end to end.
func TestMessageFanoutReachesSubscribedRecipient(t *testing.T) {
	client := setupRedis(t)
	broker := realtime.NewBroker(client)
	store := &memNotifStore{}
	fanout := notifservice.NewFanoutService(store, notifservice.NewRetryQueue(client), broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker.StartHeartbeat(ctx, 20*time.Millisecond)

	const (
		businessID = "b-1"
		vendorID   = "v-1"
	)

	// The business's client listens on its own user channel.
	session := realtime.NewSession(broker, realtime.Options{
		Channels:         []string{realtime.UserChannel(businessID)},
		HeartbeatTimeout: time.Second,
	})
	session.Start(ctx)
	defer session.Close()

	waitLive(t, session)

	msg := msgdomain.Message{
		ID:            "m-1",
		ProjectID:     "prj-10000-0001",
		SenderID:      vendorID,
		VendorScopeID: vendorID,
		Text:          "bid question",
	}
	fanout.OnMessageAppended(ctx, msg, msgdomain.ThreadKey{ProjectID: msg.ProjectID, VendorID: vendorID}, businessID)

	select {
	case u := <-session.Updates():
		assert.Equal(t, "notification", u.Kind)
		var n notifdomain.Notification
		require.NoError(t, json.Unmarshal(u.Payload, &n))
		assert.Equal(t, businessID, n.UserID)
		assert.Equal(t, "New message", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the subscribed session")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.items, 1)
	assert.Equal(t, businessID, store.items[0].UserID)
}

// Thread messages published to one vendor's channel must not reach a
// session subscribed to another vendor's thread of the same project.
func TestThreadChannelsArePartitioned(t *testing.T) {
	client := setupRedis(t)
	broker := realtime.NewBroker(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker.StartHeartbeat(ctx, 20*time.Millisecond)

	v2Session := realtime.NewSession(broker, realtime.Options{
		Channels:         []string{realtime.ThreadChannel("prj-1", "v2")},
		HeartbeatTimeout: time.Second,
	})
	v2Session.Start(ctx)
	defer v2Session.Close()

	adminSession := realtime.NewSession(broker, realtime.Options{
		Channels:         []string{realtime.ThreadPattern("prj-1")},
		HeartbeatTimeout: time.Second,
	})
	adminSession.Start(ctx)
	defer adminSession.Close()

	waitLive(t, v2Session)
	waitLive(t, adminSession)

	msg := msgdomain.Message{ID: "m-v1", ProjectID: "prj-1", VendorScopeID: "v1", SenderID: "v1", Text: "hello"}
	require.NoError(t, broker.PublishMessage(ctx, msg))

	// Admin's monitoring pattern sees it.
	select {
	case u := <-adminSession.Updates():
		assert.Equal(t, "m-v1", u.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("admin session missed the thread message")
	}

	// V2's session must stay silent.
	select {
	case u := <-v2Session.Updates():
		t.Fatalf("v2 session received another vendor's message: %+v", u)
	case <-time.After(300 * time.Millisecond):
	}
}

func waitLive(t *testing.T, s *realtime.Session) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.State() == realtime.StateLive {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never went live (state %s)", s.State())
}
