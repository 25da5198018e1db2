package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session states. Transitions:
// Disconnected → Subscribing → Live → Degraded → Live ... → Disconnected.
type State int32

const (
	StateDisconnected State = iota
	StateSubscribing
	StateLive
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// PullFunc fetches updates over the polling path. Implementations carry
// their own cursor so successive calls return only unseen records.
type PullFunc func(ctx context.Context) ([]Update, error)

// Options configures one client session.
type Options struct {
	Channels          []string
	PullMessages      PullFunc
	PullNotifications PullFunc

	HeartbeatTimeout  time.Duration
	MessagePoll       time.Duration
	NotificationPoll  time.Duration
	ReconnectInterval time.Duration
}

func (o *Options) fillDefaults() {
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 20 * time.Second
	}
	if o.MessagePoll <= 0 {
		o.MessagePoll = 10 * time.Second
	}
	if o.NotificationPoll <= 0 {
		o.NotificationPoll = 30 * time.Second
	}
	if o.ReconnectInterval <= 0 {
		o.ReconnectInterval = 5 * time.Second
	}
}

// Session merges the push and poll delivery paths into one ordered,
// de-duplicated update stream for a single connected client. It owns all
// timers and the pub/sub subscription; Close releases everything.
type Session struct {
	broker *Broker
	opts   Options

	out          chan Update
	seen         *seenSet
	state        atomic.Int32
	pollFailures atomic.Int32

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(broker *Broker, opts Options) *Session {
	opts.fillDefaults()
	return &Session{
		broker: broker,
		opts:   opts,
		out:    make(chan Update, 64),
		seen:   newSeenSet(2048),
		done:   make(chan struct{}),
	}
}

// Start launches the session loop. Updates arrive on Updates() until the
// context is cancelled or Close is called, after which the channel closes.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *Session) Updates() <-chan Update {
	return s.out
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// Close tears the session down from any state and waits for the loop to
// release its timers and subscription.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer func() {
		s.state.Store(int32(StateDisconnected))
		close(s.out)
		close(s.done)
	}()

	channels := append([]string{heartbeatChannel}, s.opts.Channels...)

	s.state.Store(int32(StateSubscribing))
	ps, err := s.broker.Subscribe(ctx, channels...)
	if err != nil {
		ps = nil
	}

	for ctx.Err() == nil {
		if ps == nil {
			s.state.Store(int32(StateDegraded))
			ps = s.degradedLoop(ctx, channels)
			if ps == nil {
				return
			}
			// Trailing poll to close any gap between the last poll and the
			// first pushed record.
			s.pollOnce(ctx)
		}
		s.state.Store(int32(StateLive))
		s.liveLoop(ctx, ps)
		ps.Close()
		ps = nil
	}
}

// liveLoop consumes pushed updates until the context ends, the transport
// closes, or heartbeats stop for longer than the timeout.
func (s *Session) liveLoop(ctx context.Context, ps *redis.PubSub) {
	hb := time.NewTimer(s.opts.HeartbeatTimeout)
	defer hb.Stop()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case m, ok := <-ch:
			if !ok {
				// Transport reported an error and closed the channel.
				return
			}
			if !hb.Stop() {
				<-hb.C
			}
			hb.Reset(s.opts.HeartbeatTimeout)
			s.handlePayload(ctx, []byte(m.Payload))

		case <-hb.C:
			// Silent transport: no data and no heartbeat past the timeout.
			return
		}
	}
}

// degradedLoop polls on fixed cadences while retrying the subscription.
// Returns the new subscription on reconnect, or nil when ctx ended.
func (s *Session) degradedLoop(ctx context.Context, channels []string) *redis.PubSub {
	msgTicker := time.NewTicker(s.opts.MessagePoll)
	defer msgTicker.Stop()
	notifTicker := time.NewTicker(s.opts.NotificationPoll)
	defer notifTicker.Stop()
	reconnect := time.NewTicker(s.opts.ReconnectInterval)
	defer reconnect.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-msgTicker.C:
			s.poll(ctx, s.opts.PullMessages)
		case <-notifTicker.C:
			s.poll(ctx, s.opts.PullNotifications)
		case <-reconnect.C:
			ps, err := s.broker.Subscribe(ctx, channels...)
			if err == nil {
				return ps
			}
		}
	}
}

func (s *Session) pollOnce(ctx context.Context) {
	s.poll(ctx, s.opts.PullMessages)
	s.poll(ctx, s.opts.PullNotifications)
}

func (s *Session) poll(ctx context.Context, pull PullFunc) {
	if pull == nil {
		return
	}
	updates, err := pull(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		// Transport errors are recovered locally; only repeated poll
		// failures surface as a connectivity indicator.
		if s.pollFailures.Add(1) == 3 {
			s.emit(ctx, Update{Kind: "status", Payload: json.RawMessage(`{"connectivity":"degraded"}`)})
		}
		log.Printf("session poll: %v", err)
		return
	}
	if s.pollFailures.Swap(0) >= 3 {
		s.emit(ctx, Update{Kind: "status", Payload: json.RawMessage(`{"connectivity":"ok"}`)})
	}
	for _, u := range updates {
		s.deliver(ctx, u)
	}
}

func (s *Session) handlePayload(ctx context.Context, data []byte) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		log.Printf("session: malformed update: %v", err)
		return
	}
	if u.Kind == "heartbeat" {
		return
	}
	s.deliver(ctx, u)
}

// deliver emits an update unless the same record was already applied via
// the other path.
func (s *Session) deliver(ctx context.Context, u Update) {
	if u.ID != "" && !s.seen.Observe(u.Kind+":"+u.ID) {
		return
	}
	s.emit(ctx, u)
}

func (s *Session) emit(ctx context.Context, u Update) {
	select {
	case s.out <- u:
	case <-ctx.Done():
	}
}
