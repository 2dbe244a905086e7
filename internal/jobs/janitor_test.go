package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/promptflow/internal/domain"
)

func TestJanitor_InvalidSchedule(t *testing.T) {
	_, err := NewJanitor(JanitorConfig{Store: NewMemoryStore(10), Schedule: "not a cron"})
	assert.Error(t, err)
}

func TestJanitor_Next(t *testing.T) {
	j, err := NewJanitor(JanitorConfig{Store: NewMemoryStore(10), Schedule: "0 * * * *"})
	require.NoError(t, err)

	from := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), j.Next(from))
}

func TestJanitor_RunOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(100)
	for i := 0; i < 5; i++ {
		job := domain.NewJob(testWorkflow(), nil, 1)
		require.NoError(t, store.Create(ctx, job))
		job.MarkCompleted(&domain.JobResult{})
		require.NoError(t, store.Update(ctx, job))
	}

	j, err := NewJanitor(JanitorConfig{Store: store, Keep: 2})
	require.NoError(t, err)

	removed, err := j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)
	assert.Equal(t, 2, store.Len())

	removed, err = j.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
