package worker

import (
	"context"
	"sort"
	"sync"
)

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of a Job
type Result interface {
	GetError() error
}

type task struct {
	seq int
	job Job
}

type outcome struct {
	seq    int
	result Result
}

// Pool runs jobs on a fixed number of goroutines.
// Wait returns results in submission order.
type Pool struct {
	workers int
	tasks   chan task
	results chan outcome
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	submitted int
	closeOnce sync.Once

	collected []outcome
	done      chan struct{}
}

// NewPool creates a pool bound to ctx; workers <= 0 means one worker
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		workers: workers,
		tasks:   make(chan task, workers*2),
		results: make(chan outcome, workers*2),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go p.collect()
	return p
}

// collect drains results while jobs are still being submitted
func (p *Pool) collect() {
	defer close(p.done)
	for o := range p.results {
		p.collected = append(p.collected, o)
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

func (p *Pool) run() {
	defer p.wg.Done()

	for t := range p.tasks {
		r := t.job.Execute(p.ctx)
		p.results <- outcome{seq: t.seq, result: r}
	}
}

// Submit queues a job. It returns false if the pool's context is done.
// Submit must not be called after Wait.
func (p *Pool) Submit(job Job) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.mu.Lock()
	seq := p.submitted
	p.submitted++
	p.mu.Unlock()

	select {
	case <-p.ctx.Done():
		return false
	case p.tasks <- task{seq: seq, job: job}:
		return true
	}
}

// Wait closes the queue, waits for every accepted job and returns the results
// in submission order. Jobs see a cancelled context after Shutdown.
func (p *Pool) Wait() []Result {
	p.closeOnce.Do(func() {
		close(p.tasks)
		p.wg.Wait()
		close(p.results)
	})
	<-p.done
	p.cancel()

	outcomes := p.collected

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].seq < outcomes[j].seq })

	results := make([]Result, len(outcomes))
	for i, o := range outcomes {
		results[i] = o.result
	}
	return results
}

// Shutdown cancels the context seen by running and queued jobs
func (p *Pool) Shutdown() {
	p.cancel()
}
