package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"whatsapp-campaigns/internal/models"
)

// RedisScheduleStore keeps pending scheduled sends in a Redis hash keyed by job id
type RedisScheduleStore struct {
	client *redis.Client
	key    string
}

// NewRedisScheduleStore creates a schedule store using the hash at key
func NewRedisScheduleStore(client *redis.Client, key string) *RedisScheduleStore {
	return &RedisScheduleStore{
		client: client,
		key:    key,
	}
}

// Save stores or replaces a job
func (s *RedisScheduleStore) Save(ctx context.Context, job *models.ScheduledSend) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode scheduled send: %w", err)
	}
	return s.client.HSet(ctx, s.key, job.ID, payload).Err()
}

// Delete removes a job; deleting an unknown id is not an error
func (s *RedisScheduleStore) Delete(ctx context.Context, id string) error {
	return s.client.HDel(ctx, s.key, id).Err()
}

// List returns every stored job; undecodable entries are dropped
func (s *RedisScheduleStore) List(ctx context.Context) ([]*models.ScheduledSend, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]*models.ScheduledSend, 0, len(entries))
	for id, payload := range entries {
		var job models.ScheduledSend
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			s.client.HDel(ctx, s.key, id)
			continue
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}
