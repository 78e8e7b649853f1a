package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-campaigns/internal/models"
)

func newTestScheduleStore(t *testing.T) (*RedisScheduleStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisScheduleStore(client, "test:scheduled"), mr
}

func TestRedisScheduleStore_SaveListDelete(t *testing.T) {
	store, _ := newTestScheduleStore(t)
	ctx := context.Background()

	runAt := time.Now().Add(time.Hour)
	job := models.NewScheduledSend("acme", "acme", []string{"+919876543210"}, "hello", &models.Media{
		Name:     "promo.png",
		MimeType: "image/png",
		Data:     []byte{0x89, 0x50},
	}, runAt)

	require.NoError(t, store.Save(ctx, job))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Equal(t, []string{"+919876543210"}, jobs[0].Recipients)
	assert.Equal(t, []byte{0x89, 0x50}, jobs[0].Media.Data)
	assert.True(t, job.RunAt.Equal(jobs[0].RunAt))

	require.NoError(t, store.Delete(ctx, job.ID))
	jobs, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRedisScheduleStore_DeleteUnknown(t *testing.T) {
	store, _ := newTestScheduleStore(t)
	assert.NoError(t, store.Delete(context.Background(), "missing"))
}

func TestRedisScheduleStore_DropsCorruptEntries(t *testing.T) {
	store, mr := newTestScheduleStore(t)
	ctx := context.Background()

	mr.HSet("test:scheduled", "broken", "{not json")
	job := models.NewScheduledSend("acme", "acme", []string{"+919876543210"}, "hi", nil, time.Now().Add(time.Minute))
	require.NoError(t, store.Save(ctx, job))

	jobs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job.ID, jobs[0].ID)
	assert.Empty(t, mr.HGet("test:scheduled", "broken"))
}
