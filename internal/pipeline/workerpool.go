package pipeline

import (
	"runtime"
	"sync"
)

// workerPool fans jobs out to a bounded set of goroutines and funnels the
// results back on a single channel.
type workerPool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// newWorkerPool sizes the pool. Zero or negative numWorkers means one
// worker per CPU, and the pool never runs more workers than there are jobs.
func newWorkerPool[Job any, Result any](numWorkers, numJobs int) *workerPool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numJobs > 0 && numWorkers > numJobs {
		numWorkers = numJobs
	}

	return &workerPool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, numJobs),
		results:    make(chan Result, numJobs),
	}
}

// Start begins the workers with the provided worker function.
func (p *workerPool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit adds a job to the queue.
func (p *workerPool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close stops intake and closes the results channel once the workers drain.
func (p *workerPool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the channel worker outputs arrive on.
func (p *workerPool[Job, Result]) Results() <-chan Result {
	return p.results
}
