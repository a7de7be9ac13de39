package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// Job is one unit of relationship computation work.
type Job struct {
	ID             uuid.UUID
	RelationshipID uuid.UUID
	OwnerUserID    uuid.UUID
	PairKey        string
	Attempt        int
	NextRunAt      time.Time
	LastError      string
}

// Handler executes a job. A non-nil error is treated as a transient failure
// and retried per the backoff schedule until attempts are exhausted.
type Handler func(ctx context.Context, job *Job) error

// ExhaustedFunc is invoked once when a job has failed its final attempt.
type ExhaustedFunc func(ctx context.Context, job *Job, lastErr error)

type Config struct {
	Concurrency int
	MaxAttempts int
	Backoff     Backoff
	Clock       Clock
}

// Queue is an in-process background queue with one hard guarantee: at most
// one job per pair key is in flight at any instant, and jobs for the same
// pair run in enqueue order. Distinct pairs run concurrently up to the
// configured worker count.
type Queue struct {
	log  *logger.Logger
	cfg  Config
	work chan *Job
	wake chan struct{}

	mu       sync.Mutex
	pending  []*Job
	inflight map[string]bool
	started  bool
}

func New(baseLog *logger.Logger, cfg Config) *Queue {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if len(cfg.Backoff.Delays) == 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	return &Queue{
		log:      baseLog.With("component", "ProcessingQueue"),
		cfg:      cfg,
		work:     make(chan *Job),
		wake:     make(chan struct{}, 1),
		inflight: map[string]bool{},
	}
}

// Enqueue adds a job. Safe to call before and after Start.
func (q *Queue) Enqueue(job *Job) {
	if job == nil || job.PairKey == "" {
		return
	}
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	q.signal()
}

// Pending reports how many jobs are queued but not in flight.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Start launches the dispatcher and worker goroutines. They exit when ctx
// is canceled.
func (q *Queue) Start(ctx context.Context, handler Handler, exhausted ExhaustedFunc) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	q.log.Info("Starting processing queue",
		"concurrency", q.cfg.Concurrency,
		"max_attempts", q.cfg.MaxAttempts,
	)
	for i := 0; i < q.cfg.Concurrency; i++ {
		go q.workerLoop(ctx, i+1, handler, exhausted)
	}
	go q.dispatchLoop(ctx)
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop hands out the oldest runnable job whose pair is idle. When
// nothing is runnable it sleeps until the earliest deferred job is due or a
// completion/enqueue wakes it.
func (q *Queue) dispatchLoop(ctx context.Context) {
	for {
		job, wait := q.nextRunnable()
		if job != nil {
			select {
			case q.work <- job:
			case <-ctx.Done():
				return
			}
			continue
		}

		var due <-chan time.Time
		if wait > 0 {
			due = q.cfg.Clock.After(wait)
		}
		select {
		case <-q.wake:
		case <-due:
		case <-ctx.Done():
			return
		}
	}
}

// nextRunnable pops the first pending job that is due and whose pair is not
// in flight, marking the pair busy. When none qualifies it returns the wait
// until the earliest due job on an idle pair (0 = wait for a wake signal).
func (q *Queue) nextRunnable() (*Job, time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.cfg.Clock.Now()
	var earliest time.Time
	for i, job := range q.pending {
		if q.inflight[job.PairKey] {
			continue
		}
		if job.NextRunAt.After(now) {
			if earliest.IsZero() || job.NextRunAt.Before(earliest) {
				earliest = job.NextRunAt
			}
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		q.inflight[job.PairKey] = true
		return job, 0
	}
	if earliest.IsZero() {
		return nil, 0
	}
	return nil, earliest.Sub(now)
}

func (q *Queue) finish(pairKey string) {
	q.mu.Lock()
	delete(q.inflight, pairKey)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) workerLoop(ctx context.Context, workerID int, handler Handler, exhausted ExhaustedFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.work:
			q.runJob(ctx, workerID, job, handler, exhausted)
		}
	}
}

func (q *Queue) runJob(ctx context.Context, workerID int, job *Job, handler Handler, exhausted ExhaustedFunc) {
	defer q.finish(job.PairKey)

	job.Attempt++
	err := q.invoke(ctx, job, handler)
	if err == nil {
		return
	}

	job.LastError = err.Error()
	if job.Attempt >= q.cfg.MaxAttempts {
		q.log.Error("Job attempts exhausted",
			"worker_id", workerID,
			"job_id", job.ID,
			"pair_key", job.PairKey,
			"attempt", job.Attempt,
			"error", err,
		)
		if exhausted != nil {
			exhausted(ctx, job, err)
		}
		return
	}

	delay := q.cfg.Backoff.Delay(job.Attempt)
	job.NextRunAt = q.cfg.Clock.Now().Add(delay)
	q.log.Warn("Job failed, scheduling retry",
		"worker_id", workerID,
		"job_id", job.ID,
		"pair_key", job.PairKey,
		"attempt", job.Attempt,
		"retry_in", delay.String(),
		"error", err,
	)
	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	q.signal()
}

// invoke runs the handler with a panic guard; handler panics become job
// failures instead of taking down the worker.
func (q *Queue) invoke(ctx context.Context, job *Job, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Job handler panic",
				"job_id", job.ID,
				"pair_key", job.PairKey,
				"panic", r,
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, job)
}
