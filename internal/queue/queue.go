package queue

import (
	"errors"
	"sync"

	"relay-server/internal/logger"
)

var ErrQueueClosed = errors.New("queue: closed")

type Job struct {
	Fn   func() error
	Errc chan error
}

// RequestQueueManager runs jobs on a fixed set of workers. With a single
// worker, jobs run in enqueue order.
type RequestQueueManager struct {
	Name       string
	JobQueue   chan Job
	MaxWorkers int
	wg         sync.WaitGroup
	mu         sync.RWMutex
	closed     bool
	logger     *logger.Logger
}

func NewRequestQueueManager(name string, queueSize int, maxWorkers int, log *logger.Logger) *RequestQueueManager {
	if log == nil {
		log = logger.Get()
	}
	manager := &RequestQueueManager{
		Name:       name,
		JobQueue:   make(chan Job, queueSize),
		MaxWorkers: maxWorkers,
		logger:     log.With("queue", name),
	}
	manager.startWorkers()
	return manager
}

func (rqm *RequestQueueManager) startWorkers() {
	for i := 0; i < rqm.MaxWorkers; i++ {
		rqm.wg.Add(1)
		go func(workerID int) {
			defer rqm.wg.Done()
			rqm.logger.Debug("worker started", "worker", workerID)
			for job := range rqm.JobQueue {
				err := job.Fn()
				if job.Errc != nil {
					job.Errc <- err
				} else if err != nil {
					rqm.logger.WarnWithErr("job failed", err, "worker", workerID)
				}
			}
			rqm.logger.Debug("worker stopped", "worker", workerID)
		}(i)
	}
}

// EnqueueJob blocks until a worker slot is free in the queue.
func (rqm *RequestQueueManager) EnqueueJob(job Job) error {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return ErrQueueClosed
	}
	rqm.JobQueue <- job
	return nil
}

// TryEnqueueJob queues job without blocking and reports whether it was
// accepted.
func (rqm *RequestQueueManager) TryEnqueueJob(job Job) bool {
	rqm.mu.RLock()
	defer rqm.mu.RUnlock()
	if rqm.closed {
		return false
	}
	select {
	case rqm.JobQueue <- job:
		return true
	default:
		return false
	}
}

func (rqm *RequestQueueManager) Depth() int {
	return len(rqm.JobQueue)
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (rqm *RequestQueueManager) Shutdown() {
	rqm.mu.Lock()
	if rqm.closed {
		rqm.mu.Unlock()
		return
	}
	rqm.closed = true
	close(rqm.JobQueue)
	rqm.mu.Unlock()

	rqm.wg.Wait()
}
