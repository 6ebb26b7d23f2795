package queue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"learncircle/internal/util"
)

// MemoryJobQueue runs jobs on in-process goroutines. Jobs are lost on restart.
type MemoryJobQueue struct {
	mu          sync.RWMutex
	jobs        map[string]Job
	pending     chan string
	maxAttempts int
}

// NewMemoryJobQueue builds a queue holding up to buffer not-yet-started jobs.
func NewMemoryJobQueue(buffer, maxAttempts int) *MemoryJobQueue {
	if buffer <= 0 {
		buffer = 256
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &MemoryJobQueue{
		jobs:        make(map[string]Job),
		pending:     make(chan string, buffer),
		maxAttempts: maxAttempts,
	}
}

func (q *MemoryJobQueue) Enqueue(ctx context.Context, courseID string) (Job, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return Job{}, errors.New("courseId required")
	}
	now := time.Now().UTC()
	job := Job{
		ID:        util.NewID(),
		CourseID:  courseID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.mu.Lock()
	q.jobs[job.ID] = job
	q.mu.Unlock()

	select {
	case q.pending <- job.ID:
		return job, nil
	case <-ctx.Done():
		q.update(job.ID, func(j *Job) {
			j.Status = StatusError
			j.ErrorMessage = "enqueue cancelled"
		})
		return Job{}, ctx.Err()
	}
}

func (q *MemoryJobQueue) GetJob(_ context.Context, jobID string) (Job, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[jobID]
	return job, ok, nil
}

func (q *MemoryJobQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-q.pending:
					q.run(ctx, id, handler)
				}
			}
		}()
	}
}

func (q *MemoryJobQueue) run(ctx context.Context, jobID string, handler Handler) {
	for {
		job := q.update(jobID, func(j *Job) {
			j.Attempts++
			j.Status = StatusRunning
		})
		err := handler(ctx, job)
		if err == nil {
			q.update(jobID, func(j *Job) {
				j.Status = StatusComplete
				j.ErrorMessage = ""
			})
			return
		}
		if ctx.Err() != nil {
			// Interrupted attempts do not count.
			q.update(jobID, func(j *Job) {
				j.Attempts--
				j.Status = StatusPending
				j.ErrorMessage = ""
			})
			return
		}
		if job.Attempts >= q.maxAttempts {
			q.update(jobID, func(j *Job) {
				j.Status = StatusError
				j.ErrorMessage = err.Error()
			})
			return
		}
		q.update(jobID, func(j *Job) {
			j.Status = StatusPending
			j.ErrorMessage = err.Error()
		})
	}
}

func (q *MemoryJobQueue) update(jobID string, fn func(*Job)) Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[jobID]
	fn(&job)
	job.UpdatedAt = time.Now().UTC()
	q.jobs[jobID] = job
	return job
}
