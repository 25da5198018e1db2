package service

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/makerbridge/marketplace-backend/internal/messaging/domain"
)

const maxMessageLen = 4000

// ThreadStore is the persistence surface of the message service.
type ThreadStore interface {
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	List(ctx context.Context, key domain.ThreadKey, cursor string, limit int) ([]domain.Message, error)
}

// Fanout receives every stored message to generate notifications.
// Implemented by the notifications service.
type Fanout interface {
	OnMessageAppended(ctx context.Context, msg domain.Message, key domain.ThreadKey, businessID string)
}

// Publisher pushes stored messages onto the thread's realtime channel.
type Publisher interface {
	PublishMessage(ctx context.Context, msg domain.Message) error
}

// MessageService orchestrates authorize → append → fanout. Appends to the
// same thread key are serialized through a per-key lock to preserve the
// (created_at, id) ordering invariant; different keys do not contend.
type MessageService struct {
	resolver *Resolver
	store    ThreadStore
	fanout   Fanout
	pub      Publisher
	projects ProjectDirectory

	locks    sync.Map // thread key → *sync.Mutex
	limiters sync.Map // sender id → *rate.Limiter
}

func NewMessageService(resolver *Resolver, store ThreadStore, fanout Fanout, pub Publisher, projects ProjectDirectory) *MessageService {
	return &MessageService{
		resolver: resolver,
		store:    store,
		fanout:   fanout,
		pub:      pub,
		projects: projects,
	}
}

type SendInput struct {
	ProjectID   string
	VendorScope string
	Text        string
	ImageURL    string
}

// Send appends a message to the thread the actor resolves to.
func (s *MessageService) Send(ctx context.Context, actor domain.Actor, in SendInput) (domain.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" || len(text) > maxMessageLen {
		return domain.Message{}, domain.ErrInvalidMessage
	}

	if !s.limiter(actor.ID).Allow() {
		return domain.Message{}, domain.ErrRateLimited
	}

	key, err := s.resolver.Authorize(ctx, actor, in.ProjectID, in.VendorScope, domain.OpWrite)
	if err != nil {
		return domain.Message{}, err
	}

	mu := s.lock(key)
	mu.Lock()
	stored, err := s.store.Append(ctx, domain.Message{
		ProjectID:     key.ProjectID,
		SenderID:      actor.ID,
		VendorScopeID: key.VendorID,
		Text:          text,
		ImageURL:      strings.TrimSpace(in.ImageURL),
	})
	mu.Unlock()
	if err != nil {
		return domain.Message{}, err
	}

	// Notification fanout and push delivery are decoupled from the append;
	// their failures never fail the write.
	go s.afterAppend(stored, key)

	return stored, nil
}

// List returns the thread's messages after the cursor, oldest first.
func (s *MessageService) List(ctx context.Context, actor domain.Actor, projectID, vendorScope, cursor string, limit int) ([]domain.Message, error) {
	key, err := s.resolver.Authorize(ctx, actor, projectID, vendorScope, domain.OpRead)
	if err != nil {
		return nil, err
	}
	return s.store.List(ctx, key, cursor, limit)
}

// Threads lists the thread keys visible to the actor for a project.
func (s *MessageService) Threads(ctx context.Context, actor domain.Actor, projectID string) ([]domain.ThreadKey, error) {
	return s.resolver.VisibleThreads(ctx, actor, projectID)
}

// Resolver exposes the access resolver for read-side callers such as the
// realtime stream handler.
func (s *MessageService) Resolver() *Resolver {
	return s.resolver
}

func (s *MessageService) afterAppend(msg domain.Message, key domain.ThreadKey) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.pub != nil {
		if err := s.pub.PublishMessage(ctx, msg); err != nil {
			// Push is best effort; polling closes the gap.
			log.Printf("publish message %s: %v", msg.ID, err)
		}
	}

	if s.fanout != nil {
		owner, err := s.projects.Owner(ctx, key.ProjectID)
		if err != nil {
			log.Printf("fanout owner lookup for %s: %v", key.ProjectID, err)
			return
		}
		s.fanout.OnMessageAppended(ctx, msg, key, owner)
	}
}

func (s *MessageService) lock(key domain.ThreadKey) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *MessageService) limiter(senderID string) *rate.Limiter {
	v, ok := s.limiters.Load(senderID)
	if !ok {
		v, _ = s.limiters.LoadOrStore(senderID, rate.NewLimiter(rate.Every(time.Second), 10))
	}
	return v.(*rate.Limiter)
}
