package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockResult struct {
	id  int
	err error
}

func (r *mockResult) GetError() error {
	return r.err
}

type mockJob struct {
	id        int
	duration  time.Duration
	shouldErr bool
	executed  *int32
}

func (j *mockJob) Execute(ctx context.Context) Result {
	if j.executed != nil {
		atomic.AddInt32(j.executed, 1)
	}
	if j.duration > 0 {
		select {
		case <-time.After(j.duration):
		case <-ctx.Done():
			return &mockResult{id: j.id, err: ctx.Err()}
		}
	}
	if j.shouldErr {
		return &mockResult{id: j.id, err: errors.New("job error")}
	}
	return &mockResult{id: j.id}
}

func TestNewPool(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{5, 5},
		{0, 1},
		{-1, 1},
	}

	for _, tt := range tests {
		p := NewPool(context.Background(), tt.in)
		if p.workers != tt.want {
			t.Errorf("NewPool(%d): expected %d workers, got %d", tt.in, tt.want, p.workers)
		}
	}
}

func TestPool_ExecutesAll(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var executed int32
	for i := 0; i < 20; i++ {
		pool.Submit(&mockJob{id: i, executed: &executed})
	}

	results := pool.Wait()

	if len(results) != 20 {
		t.Errorf("expected 20 results, got %d", len(results))
	}
	if atomic.LoadInt32(&executed) != 20 {
		t.Errorf("expected 20 executions, got %d", executed)
	}
}

func TestPool_ResultsInSubmissionOrder(t *testing.T) {
	pool := NewPool(context.Background(), 4)
	pool.Start()

	// Earlier jobs take longer so they finish last
	for i := 0; i < 8; i++ {
		pool.Submit(&mockJob{id: i, duration: time.Duration(8-i) * 5 * time.Millisecond})
	}

	results := pool.Wait()

	for i, r := range results {
		if got := r.(*mockResult).id; got != i {
			t.Errorf("result %d: expected job %d, got %d", i, i, got)
		}
	}
}

func TestPool_Errors(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	pool.Submit(&mockJob{id: 0})
	pool.Submit(&mockJob{id: 1, shouldErr: true})

	results := pool.Wait()

	if results[0].GetError() != nil {
		t.Errorf("expected job 0 to succeed, got %v", results[0].GetError())
	}
	if results[1].GetError() == nil {
		t.Error("expected job 1 to fail")
	}
}

type trackingJob struct {
	current *int32
	max     *int32
	mu      *sync.Mutex
}

func (j *trackingJob) Execute(ctx context.Context) Result {
	n := atomic.AddInt32(j.current, 1)
	j.mu.Lock()
	if n > *j.max {
		*j.max = n
	}
	j.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(j.current, -1)
	return &mockResult{}
}

func TestPool_BoundedConcurrency(t *testing.T) {
	pool := NewPool(context.Background(), 3)
	pool.Start()

	var current, maxSeen int32
	var mu sync.Mutex
	for i := 0; i < 15; i++ {
		pool.Submit(&trackingJob{current: &current, max: &maxSeen, mu: &mu})
	}
	pool.Wait()

	if maxSeen > 3 {
		t.Errorf("expected at most 3 concurrent jobs, saw %d", maxSeen)
	}
}

func TestPool_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(ctx, 1)
	pool.Start()

	pool.Submit(&mockJob{id: 0, duration: time.Second})
	cancel()

	results := pool.Wait()
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !errors.Is(results[0].GetError(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", results[0].GetError())
	}

	if pool.Submit(&mockJob{id: 1}) {
		t.Error("expected Submit to refuse work after cancellation")
	}
}
