package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/CamDog38/formrelay/internal/core/metrics"
	"github.com/CamDog38/formrelay/internal/types"
)

/*
 * Job lifecycle tracking.
 *
 * The tracker owns the process-wide job table: a mutex-guarded map of job
 * records read via polling. Records are stored and returned by value, and
 * every update replaces the whole record inside one critical section, so a
 * poll never observes a partially updated job.
 *
 * Lifecycle is monotonic: pending -> processing -> (completed | failed).
 * transition rejects anything else, and a terminal job's result/error are
 * immutable.
 *
 * The table is process-local and garbage-collected only by restart; there
 * is no persistence guarantee. A client may stop polling but cannot abort a
 * started operation: the background task runs on a context detached from
 * the caller's and always reaches a terminal state, with panics at the task
 * boundary recorded as failures.
 */

// Operation is the unit of work a job performs. The returned result becomes
// the job's payload on completion.
type Operation func(ctx context.Context) (result any, err error)

// Tracker maintains job records and runs operations asynchronously.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[types.JobID]types.Job
	logger *zap.Logger
}

// NewTracker creates an empty job table.
func NewTracker(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		jobs:   make(map[types.JobID]types.Job),
		logger: logger,
	}
}

// Start allocates a pending job, begins the operation asynchronously, and
// returns the job id immediately. The operation runs on a context detached
// from ctx so an abandoned request cannot interrupt it mid-mutation.
func (t *Tracker) Start(ctx context.Context, name string, op Operation) types.JobID {
	now := time.Now().UTC()
	job := types.Job{
		JobID:     types.NewJobID(),
		Status:    types.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	t.jobs[job.JobID] = job
	t.mu.Unlock()

	opCtx := context.WithoutCancel(ctx)
	go t.run(opCtx, job.JobID, name, op)

	return job.JobID
}

// Status returns a copy of the job record. Unknown ids report
// types.ErrJobNotFound, not a crash.
func (t *Tracker) Status(id types.JobID) (types.Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return types.Job{}, types.ErrJobNotFound
	}
	return job, nil
}

// run executes the operation, moving the job through its lifecycle.
// Faults are caught at this boundary and become the job's terminal failed
// status; they never crash the process.
func (t *Tracker) run(ctx context.Context, id types.JobID, name string, op Operation) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("job panicked",
				zap.String("job_id", string(id)),
				zap.String("operation", name),
				zap.Any("panic", r),
			)
			_ = t.transition(id, types.JobFailed, nil, fmt.Sprintf("panic: %v", r))
		}
	}()

	// Processing before any mutating work
	if err := t.transition(id, types.JobProcessing, nil, ""); err != nil {
		t.logger.Error("job transition rejected",
			zap.String("job_id", string(id)),
			zap.Error(err),
		)
		return
	}

	result, err := op(ctx)
	if err != nil {
		t.logger.Warn("job failed",
			zap.String("job_id", string(id)),
			zap.String("operation", name),
			zap.Error(err),
		)
		_ = t.transition(id, types.JobFailed, nil, err.Error())
		return
	}

	t.logger.Info("job completed",
		zap.String("job_id", string(id)),
		zap.String("operation", name),
	)
	_ = t.transition(id, types.JobCompleted, result, "")
}

// validNext encodes the monotonic lifecycle.
var validNext = map[types.JobStatus][]types.JobStatus{
	types.JobPending:    {types.JobProcessing, types.JobFailed},
	types.JobProcessing: {types.JobCompleted, types.JobFailed},
}

// transition replaces the job record with its next state under the table
// lock. Read-modify-write happens inside one critical section so concurrent
// tasks cannot interleave a lost update.
func (t *Tracker) transition(id types.JobID, next types.JobStatus, result any, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return types.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return types.ErrJobTerminal
	}

	allowed := false
	for _, s := range validNext[job.Status] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%s -> %s: %w", job.Status, next, types.ErrInvalidTransition)
	}

	job.Status = next
	job.Result = result
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	t.jobs[id] = job

	if next.Terminal() {
		metrics.JobsFinished.WithLabelValues(string(next)).Inc()
	}
	return nil
}
