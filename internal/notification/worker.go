package notification

import (
	"context"
	"log"
	"sync"
	"time"

	"push-demo-backend/internal/model"
)

// Sender delivers a notification to all devices of an owner.
type Sender interface {
	Send(ctx context.Context, ownerID string, n model.Notification) error
}

// Job is one queued send request.
type Job struct {
	OwnerID      string
	Notification model.Notification
	Delay        time.Duration
}

// WorkerPool runs queued sends in the background so HTTP handlers can answer
// immediately.
type WorkerPool struct {
	size   int
	jobs   chan Job
	sender Sender
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queueSize int, sender Sender) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &WorkerPool{
		size:   size,
		jobs:   make(chan Job, queueSize),
		sender: sender,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has returned.
func (wp *WorkerPool) Run(ctx context.Context) error {
	wp.Start(ctx)
	<-ctx.Done()
	wp.wg.Wait()
	return nil
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			log.Printf("Worker %d sending to owner %s", id, job.OwnerID)
			wp.process(ctx, job)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

func (wp *WorkerPool) process(ctx context.Context, job Job) {
	if job.Delay > 0 {
		timer := time.NewTimer(job.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			log.Printf("Dropping delayed send to owner %s: %v", job.OwnerID, ctx.Err())
			return
		}
	}

	if err := wp.sender.Send(ctx, job.OwnerID, job.Notification); err != nil {
		log.Printf("Send to owner %s failed: %v", job.OwnerID, err)
	}
}

// Dispatch queues a job without blocking. It reports false when the queue is full.
func (wp *WorkerPool) Dispatch(job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	default:
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}
