package catalogsync

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WorkerConfig tunes the background push loop.
type WorkerConfig struct {
	// PollInterval is how often due jobs are claimed.
	PollInterval time.Duration
	// BatchSize bounds how many jobs one poll claims.
	BatchSize int
	// Concurrency bounds parallel pushes within a batch.
	Concurrency int
	// MaxAttempts moves a job to failed once exhausted.
	MaxAttempts int
	// BaseBackoff is doubled per attempt: base, 2*base, 4*base, ...
	BaseBackoff time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = time.Second
	}
}

// Worker polls the store for due jobs and pushes them to the platform.
type Worker struct {
	store  Store
	pusher Pusher
	lg     *zap.Logger
	cfg    WorkerConfig
	now    func() time.Time
}

// NewWorker creates a Worker with the given configuration.
func NewWorker(store Store, pusher Pusher, lg *zap.Logger, cfg WorkerConfig) *Worker {
	cfg.applyDefaults()
	return &Worker{
		store:  store,
		pusher: pusher,
		lg:     lg,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run polls until the context is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.lg.Error("catalog sync batch failed", zap.Error(err))
			}
		}
	}
}

// RunOnce claims one batch of due jobs and pushes them concurrently.
func (w *Worker) RunOnce(ctx context.Context) error {
	jobs, err := w.store.ClaimDue(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		return errors.Wrap(err, "claim due jobs")
	}
	if len(jobs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			w.process(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

// process pushes one job and records the attempt outcome. Push failures are
// logged and rescheduled; they are never propagated to the caller.
func (w *Worker) process(ctx context.Context, job Job) {
	start := w.now()
	err := w.pusher.Push(ctx, job)
	duration := w.now().Sub(start)

	if err == nil {
		w.lg.Info("catalog sync pushed",
			zap.String("entity_type", job.EntityType),
			zap.String("entity_id", job.EntityID),
			zap.String("action", job.Action),
			zap.String("status", string(StatusDone)),
			zap.Duration("duration", duration),
		)
		if markErr := w.store.MarkDone(ctx, job.ID); markErr != nil {
			w.lg.Error("mark sync job done failed", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return
	}

	attempts := job.Attempts + 1
	terminal := attempts >= w.cfg.MaxAttempts
	next := w.now().Add(w.backoff(attempts))

	w.lg.Warn("catalog sync push failed",
		zap.String("entity_type", job.EntityType),
		zap.String("entity_id", job.EntityID),
		zap.String("action", job.Action),
		zap.Int("attempts", attempts),
		zap.Bool("terminal", terminal),
		zap.Duration("duration", duration),
		zap.Error(err),
	)
	if markErr := w.store.MarkFailed(ctx, job.ID, attempts, err.Error(), next, terminal); markErr != nil {
		w.lg.Error("mark sync job failed errored", zap.String("job_id", job.ID), zap.Error(markErr))
	}
}

// backoff returns the delay before the given attempt number retries.
func (w *Worker) backoff(attempts int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= time.Minute {
			return time.Minute
		}
	}
	return d
}
