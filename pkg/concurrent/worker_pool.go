package concurrent

import (
	"context"
	"runtime"
	"sync"
)

type JobFunc[T any, G any] func(job T) G

// WorkerPool. fixed number of workers draining a buffered job queue.
// usage: AddJob all jobs, Close, Start, Wait, then range over CollectResults.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup
	ctx        context.Context
}

// NewWorkerPool. numWorkers <= 0 means one worker per cpu.
func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, jobQueueSize),
		results:    make(chan G, jobQueueSize),
		ctx:        context.Background(),
	}
}

// WithContext. once ctx is done, workers drop the jobs still queued instead of running them,
// a job already running is finished.
func (wp *WorkerPool[T, G]) WithContext(ctx context.Context) *WorkerPool[T, G] {
	wp.ctx = ctx
	return wp
}

func (wp *WorkerPool[T, G]) worker(jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		if wp.ctx.Err() != nil {
			continue
		}
		wp.results <- jobFunc(job)
	}
}

func (wp *WorkerPool[T, G]) Start(jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(jobFunc)
	}
}

func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) CollectResults() chan G {
	return wp.results
}

func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

func (wp *WorkerPool[T, G]) NumWorkers() int {
	return wp.numWorkers
}
