package services

import (
	"context"
	"sync"

	"whatsapp-campaigns/internal/models"
)

// MemoryScheduleStore keeps scheduled sends in process memory only
type MemoryScheduleStore struct {
	jobs map[string]*models.ScheduledSend
	mu   sync.RWMutex
}

// NewMemoryScheduleStore creates an empty in-memory store
func NewMemoryScheduleStore() *MemoryScheduleStore {
	return &MemoryScheduleStore{
		jobs: make(map[string]*models.ScheduledSend),
	}
}

// Save implements ScheduleStore
func (m *MemoryScheduleStore) Save(ctx context.Context, job *models.ScheduledSend) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

// Delete implements ScheduleStore
func (m *MemoryScheduleStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

// List implements ScheduleStore
func (m *MemoryScheduleStore) List(ctx context.Context) ([]*models.ScheduledSend, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*models.ScheduledSend, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}
