package service

import (
	"context"
	"fmt"
	"log"

	msgdomain "github.com/makerbridge/marketplace-backend/internal/messaging/domain"
	"github.com/makerbridge/marketplace-backend/internal/notifications/domain"
	"github.com/makerbridge/marketplace-backend/internal/routing"
)

// Store is the persistence surface of the fanout.
type Store interface {
	Create(n *domain.Notification) error
}

// Queue takes notifications whose write failed so the drain job can retry
// them. At-least-once: a queued record may be delivered again.
type Queue interface {
	Push(ctx context.Context, n domain.Notification) error
}

// Publisher pushes persisted notifications onto the recipient's realtime
// channel.
type Publisher interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
}

// FanoutService turns thread-relevant events into per-recipient
// notification records. Recipient writes are independent; one failure is
// queued for retry and never rolls back or blocks the others. Admins are
// not auto-notified of messages: monitoring is pull-based.
type FanoutService struct {
	store Store
	queue Queue
	pub   Publisher
}

func NewFanoutService(store Store, queue Queue, pub Publisher) *FanoutService {
	return &FanoutService{store: store, queue: queue, pub: pub}
}

// OnMessageAppended notifies the thread's participants minus the sender.
func (s *FanoutService) OnMessageAppended(ctx context.Context, msg msgdomain.Message, key msgdomain.ThreadKey, businessID string) {
	recipients := make([]string, 0, 2)
	for _, id := range []string{businessID, key.VendorID} {
		if id != "" && id != msg.SenderID {
			recipients = append(recipients, id)
		}
	}

	body := msg.Text
	if len(body) > 120 {
		body = body[:120] + "…"
	}

	for _, uid := range recipients {
		s.deliver(ctx, domain.Notification{
			UserID:  uid,
			Title:   "New message",
			Message: body,
			Kind:    domain.KindInfo,
		})
	}
}

// OnRoutingOrBidChange notifies the parties affected by a routing or bid
// transition.
func (s *FanoutService) OnRoutingOrBidChange(ctx context.Context, ch routing.Change) {
	switch ch.Kind {
	case routing.ChangeRouted:
		s.deliver(ctx, domain.Notification{
			UserID:  ch.VendorID,
			Title:   "New project available",
			Message: fmt.Sprintf("You were invited to bid on project %s", ch.ProjectID),
			Kind:    domain.KindInfo,
		})
	case routing.ChangeBidPlaced:
		s.deliver(ctx, domain.Notification{
			UserID:  ch.BusinessID,
			Title:   "New bid received",
			Message: fmt.Sprintf("A vendor placed a bid on project %s", ch.ProjectID),
			Kind:    domain.KindInfo,
		})
	case routing.ChangeBidAccepted:
		s.deliver(ctx, domain.Notification{
			UserID:  ch.VendorID,
			Title:   "Bid accepted",
			Message: fmt.Sprintf("Your bid on project %s was accepted", ch.ProjectID),
			Kind:    domain.KindSuccess,
		})
	case routing.ChangeBidRejected:
		s.deliver(ctx, domain.Notification{
			UserID:  ch.VendorID,
			Title:   "Bid declined",
			Message: fmt.Sprintf("Your bid on project %s was declined", ch.ProjectID),
			Kind:    domain.KindWarning,
		})
	default:
		log.Printf("fanout: unknown change kind %q", ch.Kind)
	}
}

func (s *FanoutService) deliver(ctx context.Context, n domain.Notification) {
	if err := s.store.Create(&n); err != nil {
		log.Printf("fanout: write for %s failed, queueing retry: %v", n.UserID, err)
		if s.queue != nil {
			if qerr := s.queue.Push(ctx, n); qerr != nil {
				log.Printf("fanout: retry queue push for %s failed: %v", n.UserID, qerr)
			}
		}
		return
	}

	if s.pub != nil {
		if err := s.pub.PublishNotification(ctx, n); err != nil {
			// Best effort; the notification poll picks it up.
			log.Printf("fanout: publish for %s failed: %v", n.UserID, err)
		}
	}
}
