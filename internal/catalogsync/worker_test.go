package catalogsync

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- Mock implementations ---

type fakeStore struct {
	due    []Job
	done   []string
	failed []failedMark
}

type failedMark struct {
	id       string
	attempts int
	lastErr  string
	next     time.Time
	terminal bool
}

func (s *fakeStore) Enqueue(_ context.Context, job *Job) error {
	s.due = append(s.due, *job)
	return nil
}

func (s *fakeStore) ClaimDue(_ context.Context, _ time.Time, limit int) ([]Job, error) {
	if len(s.due) > limit {
		return s.due[:limit], nil
	}
	return s.due, nil
}

func (s *fakeStore) MarkDone(_ context.Context, id string) error {
	s.done = append(s.done, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time, terminal bool) error {
	s.failed = append(s.failed, failedMark{id, attempts, lastError, nextAttemptAt, terminal})
	return nil
}

type fakePusher struct {
	err    error
	pushed []Job
}

func (p *fakePusher) Push(_ context.Context, job Job) error {
	p.pushed = append(p.pushed, job)
	return p.err
}

// --- Tests ---

func TestWorker_RunOnce(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newWorker := func(store *fakeStore, pusher *fakePusher, cfg WorkerConfig) *Worker {
		w := NewWorker(store, pusher, zap.NewNop(), cfg)
		w.now = func() time.Time { return frozen }
		return w
	}

	t.Run("successful push marks done", func(t *testing.T) {
		store := &fakeStore{due: []Job{{ID: "j-1", EntityType: "order", Action: "created"}}}
		pusher := &fakePusher{}
		w := newWorker(store, pusher, WorkerConfig{Concurrency: 1})

		require.NoError(t, w.RunOnce(context.Background()))

		require.Len(t, pusher.pushed, 1)
		assert.Equal(t, []string{"j-1"}, store.done)
		assert.Empty(t, store.failed)
	})

	t.Run("failure schedules a doubled backoff", func(t *testing.T) {
		store := &fakeStore{due: []Job{{ID: "j-1", Attempts: 2}}}
		pusher := &fakePusher{err: errors.New("platform down")}
		w := newWorker(store, pusher, WorkerConfig{Concurrency: 1, BaseBackoff: time.Second})

		require.NoError(t, w.RunOnce(context.Background()))

		require.Len(t, store.failed, 1)
		mark := store.failed[0]
		assert.Equal(t, 3, mark.attempts)
		assert.Equal(t, "platform down", mark.lastErr)
		assert.False(t, mark.terminal)
		// Third attempt: 1s doubled twice.
		assert.Equal(t, frozen.Add(4*time.Second), mark.next)
	})

	t.Run("backoff caps at one minute", func(t *testing.T) {
		store := &fakeStore{due: []Job{{ID: "j-1", Attempts: 6}}}
		pusher := &fakePusher{err: errors.New("still down")}
		w := newWorker(store, pusher, WorkerConfig{Concurrency: 1, BaseBackoff: time.Second, MaxAttempts: 20})

		require.NoError(t, w.RunOnce(context.Background()))

		require.Len(t, store.failed, 1)
		assert.Equal(t, frozen.Add(time.Minute), store.failed[0].next)
	})

	t.Run("exhausted attempts go terminal", func(t *testing.T) {
		store := &fakeStore{due: []Job{{ID: "j-1", Attempts: 7}}}
		pusher := &fakePusher{err: errors.New("gone")}
		w := newWorker(store, pusher, WorkerConfig{Concurrency: 1, MaxAttempts: 8})

		require.NoError(t, w.RunOnce(context.Background()))

		require.Len(t, store.failed, 1)
		assert.True(t, store.failed[0].terminal)
	})

	t.Run("batch size bounds one claim", func(t *testing.T) {
		store := &fakeStore{due: []Job{{ID: "j-1"}, {ID: "j-2"}, {ID: "j-3"}}}
		pusher := &fakePusher{}
		w := newWorker(store, pusher, WorkerConfig{BatchSize: 2, Concurrency: 1})

		require.NoError(t, w.RunOnce(context.Background()))
		assert.Len(t, pusher.pushed, 2)
	})

	t.Run("empty queue is a no-op", func(t *testing.T) {
		store := &fakeStore{}
		pusher := &fakePusher{}
		w := newWorker(store, pusher, WorkerConfig{})

		require.NoError(t, w.RunOnce(context.Background()))
		assert.Empty(t, pusher.pushed)
	})
}

func TestQueue_Enqueue(t *testing.T) {
	store := &fakeStore{}
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue(store, func() string { return "id-1" }, func() time.Time { return frozen })

	require.NoError(t, q.Enqueue(context.Background(), "order", "o-1", "created", []byte(`{}`)))

	require.Len(t, store.due, 1)
	job := store.due[0]
	assert.Equal(t, "id-1", job.ID)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, frozen, job.NextAttemptAt)
	assert.Equal(t, "order", job.EntityType)
}
