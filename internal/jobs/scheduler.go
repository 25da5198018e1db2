package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/makerbridge/marketplace-backend/internal/notifications/repository"
	"github.com/makerbridge/marketplace-backend/internal/notifications/service"
)

const notificationRetention = 30 * 24 * time.Hour

// Scheduler runs the background maintenance jobs: draining the fanout
// retry queue and purging old read notifications.
type Scheduler struct {
	repo  *repository.NotificationRepo
	queue *service.RetryQueue
}

func NewScheduler(repo *repository.NotificationRepo, queue *service.RetryQueue) *Scheduler {
	return &Scheduler{repo: repo, queue: queue}
}

// Start initializes cron tasks.
func (s *Scheduler) Start() {
	c := cron.New(cron.WithSeconds())

	// Retry failed fanout writes every minute.
	if _, err := c.AddFunc("0 * * * * *", s.drainRetries); err != nil {
		log.Printf("Failed to create retry drain job: %v", err)
		return
	}

	// Purge read notifications nightly at 12:00AM.
	if _, err := c.AddFunc("0 0 0 * * *", s.purgeRead); err != nil {
		log.Printf("Failed to create purge job: %v", err)
		return
	}

	log.Println("Job scheduler started (retry drain every minute, purge nightly)")
	c.Start()
}

func (s *Scheduler) drainRetries() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.queue.Drain(ctx, s.repo)
	if err != nil {
		log.Printf("retry drain stopped after %d records: %v", n, err)
		return
	}
	if n > 0 {
		log.Printf("retry drain delivered %d queued notifications", n)
	}
}

func (s *Scheduler) purgeRead() {
	n, err := s.repo.PurgeRead(notificationRetention)
	if err != nil {
		log.Printf("notification purge failed: %v", err)
		return
	}
	log.Printf("purged %d read notifications", n)
}
