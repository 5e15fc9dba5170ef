// Package catalogsync mirrors committed state to the external catalog/order
// platform. Jobs are written in the same unit of work as the transaction that
// produced them and pushed asynchronously afterwards; a push failure is
// logged and retried, never surfaced to the operator, and never rolls back a
// committed sale.
package catalogsync

import (
	"context"
	"time"
)

// Status is the lifecycle state of a sync job.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is one outbox entry for the external platform.
type Job struct {
	ID            string
	EntityType    string
	EntityID      string
	Action        string
	Payload       []byte
	Attempts      int
	Status        Status
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
}

// Store persists sync jobs.
type Store interface {
	Enqueue(ctx context.Context, job *Job) error
	// ClaimDue returns up to limit pending jobs whose next attempt is due.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Job, error)
	MarkDone(ctx context.Context, id string) error
	// MarkFailed records a failed attempt; terminal moves the job to failed
	// instead of scheduling another retry.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time, terminal bool) error
}

// Pusher delivers one job to the external platform.
type Pusher interface {
	Push(ctx context.Context, job Job) error
}

// Queue is the producing side used by the checkout orchestrator.
type Queue struct {
	store Store
	newID func() string
	now   func() time.Time
}

// NewQueue creates a Queue over the given store.
func NewQueue(store Store, newID func() string, now func() time.Time) *Queue {
	return &Queue{store: store, newID: newID, now: now}
}

// Enqueue appends a pending job. Called inside the producing transaction so
// the job commits atomically with the state it mirrors.
func (q *Queue) Enqueue(ctx context.Context, entityType, entityID, action string, payload []byte) error {
	now := q.now()
	return q.store.Enqueue(ctx, &Job{
		ID:            q.newID(),
		EntityType:    entityType,
		EntityID:      entityID,
		Action:        action,
		Payload:       payload,
		Status:        StatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
}
