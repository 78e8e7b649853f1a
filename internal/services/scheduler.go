// internal/services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/araddon/dateparse"
	"github.com/panjf2000/ants/v2"

	"whatsapp-campaigns/internal/metrics"
	"whatsapp-campaigns/internal/models"
	"whatsapp-campaigns/pkg/logger"
)

// ScheduleStore persists pending scheduled sends
type ScheduleStore interface {
	Save(ctx context.Context, job *models.ScheduledSend) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.ScheduledSend, error)
}

// Dispatcher runs a delivery; implemented by DeliveryEngine
type Dispatcher interface {
	Prepare(req *SendRequest) ([]Recipient, error)
	Send(ctx context.Context, req *SendRequest) (*models.Campaign, error)
}

// ParseScheduleTime parses an RFC3339 or common date string
func ParseScheduleTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: schedule time is required", ErrInvalidScheduleTime)
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}

	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid schedule time format", ErrInvalidScheduleTime)
	}
	return t, nil
}

// Scheduler defers delivery runs to a wall-clock time
type Scheduler struct {
	dispatcher Dispatcher
	sessions   SessionProvider
	store      ScheduleStore
	pool       *ants.Pool
	logger     *logger.Logger
	now        func() time.Time

	jobs   map[string]*models.ScheduledSend
	timers map[string]*time.Timer
	mu     sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewScheduler creates a scheduler executing fired jobs on a pool of workers goroutines
func NewScheduler(dispatcher Dispatcher, sessions SessionProvider, store ScheduleStore, workers int, log *logger.Logger) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher must not be nil")
	}
	if store == nil {
		return nil, errors.New("schedule store must not be nil")
	}
	if workers < 1 {
		return nil, errors.New("workers must be at least 1")
	}

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p interface{}) {
		log.Error("Scheduled send panicked: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		dispatcher: dispatcher,
		sessions:   sessions,
		store:      store,
		pool:       pool,
		logger:     log,
		now:        time.Now,
		jobs:       make(map[string]*models.ScheduledSend),
		timers:     make(map[string]*time.Timer),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start re-arms persisted jobs; overdue jobs fire immediately
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	jobs, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load scheduled sends: %w", err)
	}

	for _, job := range jobs {
		s.arm(job)
	}

	s.logger.Info("Scheduler started with %d pending jobs", len(jobs))
	return nil
}

// Stop disarms all timers and waits for running jobs; persisted jobs survive
func (s *Scheduler) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.mu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.jobs = make(map[string]*models.ScheduledSend)
	s.mu.Unlock()
	metrics.ScheduledPending.Set(0)

	s.wg.Wait()
	s.cancel()
	s.pool.Release()
	s.logger.Info("Scheduler stopped")
}

// Schedule validates and arms a delivery run for runAt
func (s *Scheduler) Schedule(ctx context.Context, req *SendRequest, runAt time.Time) (*models.ScheduledSend, error) {
	if runAt.IsZero() || !runAt.After(s.now()) {
		return nil, fmt.Errorf("%w: schedule time must be in the future", ErrInvalidScheduleTime)
	}
	if !s.running.Load() {
		return nil, ErrSchedulerStopped
	}
	if s.sessions != nil {
		if _, err := s.sessions.ReadySession(req.SessionID); err != nil {
			return nil, err
		}
	}

	recipients, err := s.dispatcher.Prepare(req)
	if err != nil {
		return nil, err
	}

	addresses := make([]string, len(recipients))
	for i, r := range recipients {
		addresses[i] = "+" + r.Address
	}

	job := models.NewScheduledSend(req.SessionID, req.Tenant, addresses, req.Message, req.Media, runAt)
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist scheduled send: %w", err)
	}

	s.arm(job)
	s.logger.Info("Scheduled send %s for session %s at %s (%d recipients)",
		job.ID, job.SessionID, job.RunAt.Format(time.RFC3339), len(addresses))

	return job, nil
}

// Cancel removes a pending job owned by sessionID
func (s *Scheduler) Cancel(ctx context.Context, sessionID, id string) error {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok || job.SessionID != sessionID {
		s.mu.Unlock()
		return ErrScheduleNotFound
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	delete(s.jobs, id)
	pending := len(s.jobs)
	s.mu.Unlock()

	metrics.ScheduledPending.Set(float64(pending))

	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete scheduled send: %w", err)
	}

	s.logger.Info("Cancelled scheduled send %s for session %s", id, sessionID)
	return nil
}

// Pending lists the armed jobs of sessionID ordered by fire time
func (s *Scheduler) Pending(sessionID string) []*models.ScheduledSend {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]*models.ScheduledSend, 0)
	for _, job := range s.jobs {
		if job.SessionID == sessionID {
			jobs = append(jobs, job)
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].RunAt.Before(jobs[j].RunAt)
	})
	return jobs
}

// arm starts the timer of a job
func (s *Scheduler) arm(job *models.ScheduledSend) {
	delay := job.RunAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.ID] = job
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.fire(job.ID)
	})
	metrics.ScheduledPending.Set(float64(len(s.jobs)))
}

// fire detaches a due job and hands it to the worker pool
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	job, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, id)
	delete(s.timers, id)
	pending := len(s.jobs)
	s.wg.Add(1)
	s.mu.Unlock()

	metrics.ScheduledPending.Set(float64(pending))

	if err := s.pool.Submit(func() {
		defer s.wg.Done()
		s.execute(job)
	}); err != nil {
		s.wg.Done()
		s.logger.Error("Failed to submit scheduled send %s: %v", id, err)
	}
}

// execute runs the delivery of a fired job
func (s *Scheduler) execute(job *models.ScheduledSend) {
	if err := s.store.Delete(s.ctx, job.ID); err != nil {
		s.logger.Error("Failed to delete fired scheduled send %s: %v", job.ID, err)
	}

	campaign, err := s.dispatcher.Send(s.ctx, &SendRequest{
		SessionID:  job.SessionID,
		Tenant:     job.Tenant,
		Recipients: job.Recipients,
		Message:    job.Message,
		Media:      job.Media,
		Source:     models.CampaignSourceScheduled,
	})
	if err != nil {
		s.logger.Error("Scheduled send %s for session %s failed: %v", job.ID, job.SessionID, err)
		return
	}

	s.logger.Info("Scheduled send %s completed: campaign %s, %d/%d delivered",
		job.ID, campaign.ID, campaign.SuccessCount, campaign.TotalRecipients)
}
