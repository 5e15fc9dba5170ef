package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/tillworks/lanepos/internal/catalogsync"
)

const (
	enqueueSyncJobSQL = `INSERT INTO sync_jobs (id, entity_type, entity_id, action, payload, attempts, status, last_error, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	claimDueSyncJobsSQL = `SELECT id, entity_type, entity_id, action, payload, attempts, status, last_error, next_attempt_at, created_at
		FROM sync_jobs
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	markSyncJobDoneSQL = `UPDATE sync_jobs SET status = 'done' WHERE id = $1`

	markSyncJobFailedSQL = `UPDATE sync_jobs
		SET attempts = $2, last_error = $3, next_attempt_at = $4, status = $5
		WHERE id = $1`
)

var _ catalogsync.Store = (*SyncJobStore)(nil)

// SyncJobStore implements catalogsync.Store backed by PostgreSQL. ClaimDue
// uses FOR UPDATE SKIP LOCKED so multiple workers never double-push a job.
type SyncJobStore struct {
	db *DB
}

// NewSyncJobStore returns a SyncJobStore over the given DB.
func NewSyncJobStore(db *DB) *SyncJobStore {
	return &SyncJobStore{db: db}
}

// Enqueue inserts a pending job.
func (s *SyncJobStore) Enqueue(ctx context.Context, job *catalogsync.Job) error {
	_, err := s.db.q(ctx).Exec(ctx, enqueueSyncJobSQL,
		job.ID, job.EntityType, job.EntityID, job.Action, job.Payload,
		job.Attempts, string(job.Status), job.LastError, job.NextAttemptAt, job.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "enqueueing sync job %q", job.ID)
	}
	return nil
}

// ClaimDue returns up to limit pending jobs due at now, oldest first.
func (s *SyncJobStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]catalogsync.Job, error) {
	rows, err := s.db.q(ctx).Query(ctx, claimDueSyncJobsSQL, now, limit)
	if err != nil {
		return nil, errors.Wrap(err, "claiming due sync jobs")
	}
	defer rows.Close()

	var out []catalogsync.Job
	for rows.Next() {
		var (
			job    catalogsync.Job
			status string
		)
		err := rows.Scan(&job.ID, &job.EntityType, &job.EntityID, &job.Action, &job.Payload,
			&job.Attempts, &status, &job.LastError, &job.NextAttemptAt, &job.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scanning sync job")
		}
		job.Status = catalogsync.Status(status)
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkDone moves the job to done.
func (s *SyncJobStore) MarkDone(ctx context.Context, id string) error {
	_, err := s.db.q(ctx).Exec(ctx, markSyncJobDoneSQL, id)
	if err != nil {
		return errors.Wrapf(err, "marking sync job %q done", id)
	}
	return nil
}

// MarkFailed records the attempt; terminal moves the job to failed.
func (s *SyncJobStore) MarkFailed(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time, terminal bool) error {
	status := catalogsync.StatusPending
	if terminal {
		status = catalogsync.StatusFailed
	}
	_, err := s.db.q(ctx).Exec(ctx, markSyncJobFailedSQL, id, attempts, lastError, nextAttemptAt, string(status))
	if err != nil {
		return errors.Wrapf(err, "marking sync job %q failed", id)
	}
	return nil
}
