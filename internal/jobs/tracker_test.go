package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/CamDog38/formrelay/internal/types"
)

// waitTerminal polls until the job reaches a terminal state.
func waitTerminal(t *testing.T, tr *Tracker, id types.JobID) types.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := tr.Status(id)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return types.Job{}
}

func TestTracker_StartReturnsImmediately(t *testing.T) {
	tr := NewTracker(nil)
	release := make(chan struct{})

	start := time.Now()
	id := tr.Start(context.Background(), "slow", func(ctx context.Context) (any, error) {
		<-release
		return nil, nil
	})
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Start blocked for %v", elapsed)
	}

	job, err := tr.Status(id)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if job.Status != types.JobPending && job.Status != types.JobProcessing {
		t.Errorf("status = %s before operation finished", job.Status)
	}

	close(release)
	waitTerminal(t, tr, id)
}

func TestTracker_CompletedCarriesResult(t *testing.T) {
	tr := NewTracker(nil)
	id := tr.Start(context.Background(), "dup", func(ctx context.Context) (any, error) {
		return DuplicateResult{FormID: "new-form"}, nil
	})

	job := waitTerminal(t, tr, id)
	if job.Status != types.JobCompleted {
		t.Fatalf("status = %s, expected completed", job.Status)
	}
	res, ok := job.Result.(DuplicateResult)
	if !ok || res.FormID != "new-form" {
		t.Errorf("result = %v, expected duplicate payload", job.Result)
	}
	if job.Error != "" {
		t.Errorf("completed job carries error %q", job.Error)
	}
}

func TestTracker_FailedCarriesError(t *testing.T) {
	tr := NewTracker(nil)
	id := tr.Start(context.Background(), "del", func(ctx context.Context) (any, error) {
		return nil, types.ErrFormNotFound
	})

	job := waitTerminal(t, tr, id)
	if job.Status != types.JobFailed {
		t.Fatalf("status = %s, expected failed", job.Status)
	}
	if job.Error != types.ErrFormNotFound.Error() {
		t.Errorf("error = %q", job.Error)
	}
	if job.Result != nil {
		t.Errorf("failed job carries result %v", job.Result)
	}
}

func TestTracker_PanicBecomesFailed(t *testing.T) {
	tr := NewTracker(nil)
	id := tr.Start(context.Background(), "boom", func(ctx context.Context) (any, error) {
		panic("unexpected")
	})

	job := waitTerminal(t, tr, id)
	if job.Status != types.JobFailed {
		t.Fatalf("status = %s, expected failed after panic", job.Status)
	}
	if job.Error == "" {
		t.Error("panic message not captured")
	}
}

func TestTracker_UnknownJob(t *testing.T) {
	tr := NewTracker(nil)
	_, err := tr.Status(types.NewJobID())
	if !errors.Is(err, types.ErrJobNotFound) {
		t.Errorf("err = %v, expected ErrJobNotFound", err)
	}
}

// Terminal jobs are immutable: no further transition may change payload or
// status.
func TestTracker_MonotonicLifecycle(t *testing.T) {
	tr := NewTracker(nil)
	id := tr.Start(context.Background(), "quick", func(ctx context.Context) (any, error) {
		return "done", nil
	})
	job := waitTerminal(t, tr, id)
	if job.Status != types.JobCompleted {
		t.Fatalf("status = %s", job.Status)
	}

	if err := tr.transition(id, types.JobFailed, nil, "late"); !errors.Is(err, types.ErrJobTerminal) {
		t.Errorf("transition on terminal job = %v, expected ErrJobTerminal", err)
	}

	again, _ := tr.Status(id)
	if again.Status != types.JobCompleted || again.Result != "done" {
		t.Errorf("terminal record mutated: %+v", again)
	}
}

// Operations keep running when the caller's request context dies.
func TestTracker_DetachedFromCallerContext(t *testing.T) {
	tr := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	id := tr.Start(ctx, "detached", func(opCtx context.Context) (any, error) {
		select {
		case <-opCtx.Done():
			return nil, opCtx.Err()
		case <-time.After(50 * time.Millisecond):
			return "survived", nil
		}
	})
	cancel()

	job := waitTerminal(t, tr, id)
	if job.Status != types.JobCompleted || job.Result != "survived" {
		t.Errorf("job = %+v, expected completion despite caller cancellation", job)
	}
}

func TestTracker_StatusReturnsCopy(t *testing.T) {
	tr := NewTracker(nil)
	id := tr.Start(context.Background(), "quick", func(ctx context.Context) (any, error) {
		return "done", nil
	})
	job := waitTerminal(t, tr, id)

	job.Status = types.JobPending
	job.Result = "tampered"

	fresh, err := tr.Status(id)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if fresh.Status != types.JobCompleted || fresh.Result != "done" {
		t.Errorf("stored record affected by caller mutation: %+v", fresh)
	}
}
