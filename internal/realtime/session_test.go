package realtime

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
)

func setupBroker(t *testing.T) (*Broker, *redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err())
	return NewBroker(client), client, mr
}

// pullScript returns a PullFunc that serves a fixed batch on every call.
func pullScript(updates ...Update) PullFunc {
	return func(context.Context) ([]Update, error) {
		return updates, nil
	}
}

func collect(t *testing.T, s *Session, want int, timeout time.Duration) []Update {
	t.Helper()
	out := []Update{}
	deadline := time.After(timeout)
	for len(out) < want {
		select {
		case u, ok := <-s.Updates():
			if !ok {
				return out
			}
			out = append(out, u)
		case <-deadline:
			t.Fatalf("collected %d of %d updates before timeout", len(out), want)
		}
	}
	return out
}

func waitForState(t *testing.T, s *Session, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached %s (stuck in %s)", want, s.State())
}

func TestSession_DeliversPushedMessages(t *testing.T) {
	broker, _, _ := setupBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	broker.StartHeartbeat(ctx, 20*time.Millisecond)

	session := NewSession(broker, Options{
		Channels:         []string{ThreadChannel("prj-1", "v1")},
		HeartbeatTimeout: time.Second,
	})
	session.Start(ctx)
	defer session.Close()

	waitForState(t, session, StateLive, time.Second)

	msg := msgdomain.Message{ID: "m1", ProjectID: "prj-1", VendorScopeID: "v1", Text: "hello"}
	require.NoError(t, broker.PublishMessage(ctx, msg))

	got := collect(t, session, 1, time.Second)
	assert.Equal(t, "message", got[0].Kind)
	assert.Equal(t, "m1", got[0].ID)

	var decoded msgdomain.Message
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, "hello", decoded.Text)
}

func TestSession_DegradesWithoutHeartbeats(t *testing.T) {
	// Scenario: transport subscribes fine but goes silent. The session
	// must fall back to polling and keep delivering without a gap.
	broker, _, _ := setupBroker(t)

	polled := Update{Kind: "message", ID: "via-poll", Payload: json.RawMessage(`{}`)}

	session := NewSession(broker, Options{
		Channels:          []string{ThreadChannel("prj-1", "v1")},
		PullMessages:      pullScript(polled),
		HeartbeatTimeout:  50 * time.Millisecond,
		MessagePoll:       20 * time.Millisecond,
		NotificationPoll:  time.Hour,
		ReconnectInterval: time.Hour, // stay degraded for the test
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)
	defer session.Close()

	waitForState(t, session, StateDegraded, time.Second)

	got := collect(t, session, 1, time.Second)
	assert.Equal(t, "via-poll", got[0].ID)
	assert.Equal(t, StateDegraded, session.State())
}

func TestSession_NoDuplicateAcrossPushAndPoll(t *testing.T) {
	// The same record arrives once via push and again via the poll cycle
	// after degrading; the merged stream must contain it exactly once.
	broker, _, _ := setupBroker(t)

	msg := msgdomain.Message{ID: "dup-1", ProjectID: "prj-1", VendorScopeID: "v1", Text: "once"}
	payload, _ := json.Marshal(msg)
	pollBatch := pullScript(
		Update{Kind: "message", ID: "dup-1", Payload: payload},
		Update{Kind: "message", ID: "fresh-2", Payload: json.RawMessage(`{}`)},
	)

	session := NewSession(broker, Options{
		Channels:          []string{ThreadChannel("prj-1", "v1")},
		PullMessages:      pollBatch,
		HeartbeatTimeout:  80 * time.Millisecond,
		MessagePoll:       20 * time.Millisecond,
		NotificationPoll:  time.Hour,
		ReconnectInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)
	defer session.Close()

	waitForState(t, session, StateLive, time.Second)
	require.NoError(t, broker.PublishMessage(ctx, msg))

	got := collect(t, session, 2, 2*time.Second)

	ids := map[string]int{}
	for _, u := range got {
		ids[u.ID]++
	}
	assert.Equal(t, 1, ids["dup-1"], "record seen via both paths must be emitted once")
	assert.Equal(t, 1, ids["fresh-2"])
}

func TestSession_ReconnectsAndResumesPush(t *testing.T) {
	broker, _, _ := setupBroker(t)

	session := NewSession(broker, Options{
		Channels:          []string{ThreadChannel("prj-1", "v1")},
		HeartbeatTimeout:  50 * time.Millisecond,
		MessagePoll:       time.Hour,
		NotificationPoll:  time.Hour,
		ReconnectInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)
	defer session.Close()

	// No heartbeats yet: Live → Degraded on timeout, then the reconnect
	// ticker re-subscribes. Once heartbeats flow the session stays Live.
	waitForState(t, session, StateDegraded, time.Second)
	broker.StartHeartbeat(ctx, 20*time.Millisecond)
	waitForState(t, session, StateLive, 2*time.Second)

	msg := msgdomain.Message{ID: "after-reconnect", ProjectID: "prj-1", VendorScopeID: "v1"}
	require.NoError(t, broker.PublishMessage(ctx, msg))
	got := collect(t, session, 1, time.Second)
	assert.Equal(t, "after-reconnect", got[0].ID)
}

func TestSession_CloseReleasesEverything(t *testing.T) {
	broker, _, _ := setupBroker(t)

	session := NewSession(broker, Options{
		Channels:         []string{ThreadChannel("prj-1", "v1")},
		HeartbeatTimeout: time.Hour,
	})

	ctx := context.Background()
	session.Start(ctx)
	waitForState(t, session, StateLive, time.Second)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Updates channel must close on teardown.
		for range session.Updates() {
		}
	}()

	session.Close()
	wg.Wait()
	assert.Equal(t, StateDisconnected, session.State())
}
