package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type sleepResult struct {
	index int
	err   error
}

func (r *sleepResult) GetError() error { return r.err }

// sleepJob finishes after a delay and reports its index
type sleepJob struct {
	index   int
	delay   time.Duration
	fail    bool
	running *int32
	peak    *int32
}

func (j *sleepJob) Execute(ctx context.Context) Result {
	if j.running != nil {
		n := atomic.AddInt32(j.running, 1)
		defer atomic.AddInt32(j.running, -1)
		for {
			p := atomic.LoadInt32(j.peak)
			if n <= p || atomic.CompareAndSwapInt32(j.peak, p, n) {
				break
			}
		}
	}
	select {
	case <-time.After(j.delay):
	case <-ctx.Done():
		return &sleepResult{index: j.index, err: ctx.Err()}
	}
	if j.fail {
		return &sleepResult{index: j.index, err: errors.New("chunk failed")}
	}
	return &sleepResult{index: j.index}
}

func TestRun_SubmissionOrder(t *testing.T) {
	total := 40
	jobs := make([]Job, total)
	for i := range jobs {
		// Later jobs finish first
		jobs[i] = &sleepJob{index: i, delay: time.Duration(total-i) * time.Millisecond}
	}

	// More jobs than the queue and result buffers hold
	results := Run(context.Background(), 3, jobs)

	if len(results) != total {
		t.Fatalf("expected %d results, got %d", total, len(results))
	}
	for i, r := range results {
		if r == nil {
			t.Fatalf("result %d missing", i)
		}
		if got := r.(*sleepResult).index; got != i {
			t.Errorf("result %d: got index %d", i, got)
		}
	}
}

func TestRun_WorkerBound(t *testing.T) {
	tests := []struct {
		workers  int
		wantPeak int32
	}{
		{workers: 1, wantPeak: 1},
		{workers: 0, wantPeak: 1},
		{workers: 3, wantPeak: 3},
	}

	for _, tt := range tests {
		var running, peak int32
		jobs := make([]Job, 9)
		for i := range jobs {
			jobs[i] = &sleepJob{index: i, delay: 5 * time.Millisecond, running: &running, peak: &peak}
		}

		Run(context.Background(), tt.workers, jobs)

		if peak > tt.wantPeak {
			t.Errorf("workers=%d: peak concurrency %d exceeds %d", tt.workers, peak, tt.wantPeak)
		}
		if peak < 1 {
			t.Errorf("workers=%d: no job ran", tt.workers)
		}
	}
}

func TestRun_ErrorsStayWithTheirJob(t *testing.T) {
	jobs := []Job{
		&sleepJob{index: 0},
		&sleepJob{index: 1, fail: true},
		&sleepJob{index: 2},
	}

	results := Run(context.Background(), 2, jobs)

	for i, r := range results {
		gotErr := r.GetError() != nil
		if gotErr != (i == 1) {
			t.Errorf("result %d: error = %v", i, r.GetError())
		}
	}
}

func TestRun_Empty(t *testing.T) {
	if got := Run(context.Background(), 4, nil); len(got) != 0 {
		t.Errorf("expected no results, got %d", len(got))
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		&sleepJob{index: 0, delay: time.Second},
		&sleepJob{index: 1, delay: time.Second},
		&sleepJob{index: 2, delay: time.Second},
	}
	done := make(chan []Result)
	go func() { done <- Run(ctx, 1, jobs) }()

	select {
	case results := <-done:
		if len(results) != len(jobs) {
			t.Errorf("expected %d slots, got %d", len(jobs), len(results))
		}
		for i, r := range results {
			if r != nil && r.GetError() == nil {
				t.Errorf("result %d completed despite cancellation", i)
			}
		}
	case <-time.After(time.Second / 2):
		t.Fatal("Run blocked on cancelled context")
	}
}
