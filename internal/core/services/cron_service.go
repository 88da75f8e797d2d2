package services

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"classroom-api/internal/adapters/persistence/repositories"
)

// CronService runs scheduled maintenance jobs
type CronService struct {
	cron          *cron.Cron
	eventRepo     repositories.AuthEventRepository
	spec          string
	retentionDays int
	now           func() time.Time
}

// NewCronService creates a cron service that purges auth events older than retentionDays
func NewCronService(eventRepo repositories.AuthEventRepository, spec string, retentionDays int) *CronService {
	return &CronService{
		cron:          cron.New(),
		eventRepo:     eventRepo,
		spec:          spec,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runPurge); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("🚀 CronService started [auth event purge: %s, retention %d days]", s.spec, s.retentionDays)
	return nil
}

// Stop stops the scheduler and waits for a running job
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 CronService stopped")
}

func (s *CronService) runPurge() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.PurgeAuthEvents(ctx)
	if err != nil {
		log.Printf("❌ Auth event purge failed: %v", err)
		return
	}
	log.Printf("✅ Auth event purge removed %d events", n)
}

// PurgeAuthEvents deletes events older than the retention period
func (s *CronService) PurgeAuthEvents(ctx context.Context) (int64, error) {
	cutoff := s.now().AddDate(0, 0, -s.retentionDays)
	return s.eventRepo.DeleteOlderThan(ctx, cutoff)
}
