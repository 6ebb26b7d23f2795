package queue

import (
	"context"
	"time"
)

// Content generation job states.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Job is the polling record of one content-generation run for a course.
type Job struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Handler runs one job. A returned error marks the attempt failed.
type Handler func(context.Context, Job) error

// JobQueue accepts course ids and runs them through a Handler on background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, courseID string) (Job, error)
	GetJob(ctx context.Context, jobID string) (Job, bool, error)
	Start(ctx context.Context, concurrency int, handler Handler)
}

const defaultMaxAttempts = 1
