package memory

import (
	"context"
	"sort"
	"time"

	"github.com/tillworks/lanepos/internal/catalogsync"
)

var _ catalogsync.Store = (*SyncJobStore)(nil)

// SyncJobStore implements catalogsync.Store over the shared store.
type SyncJobStore struct {
	s *Store
}

// Enqueue inserts a pending job.
func (r *SyncJobStore) Enqueue(_ context.Context, job *catalogsync.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.jobs[job.ID] = *job
	return nil
}

// ClaimDue returns up to limit pending jobs due at now, oldest first.
func (r *SyncJobStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]catalogsync.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	due := make([]catalogsync.Job, 0, limit)
	for _, job := range r.s.jobs {
		if job.Status == catalogsync.StatusPending && !job.NextAttemptAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// MarkDone moves the job to done.
func (r *SyncJobStore) MarkDone(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok {
		return nil
	}
	job.Status = catalogsync.StatusDone
	r.s.jobs[id] = job
	return nil
}

// MarkFailed records the attempt; terminal moves the job to failed.
func (r *SyncJobStore) MarkFailed(_ context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time, terminal bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	job, ok := r.s.jobs[id]
	if !ok {
		return nil
	}
	job.Attempts = attempts
	job.LastError = lastError
	job.NextAttemptAt = nextAttemptAt
	if terminal {
		job.Status = catalogsync.StatusFailed
	}
	r.s.jobs[id] = job
	return nil
}

// Jobs returns a snapshot of every job, oldest first. Test helper.
func (r *SyncJobStore) Jobs() []catalogsync.Job {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]catalogsync.Job, 0, len(r.s.jobs))
	for _, job := range r.s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
