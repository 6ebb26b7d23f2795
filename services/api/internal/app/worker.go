package app

import (
	"context"
	"fmt"
	"log/slog"

	"learncircle/pkg/contentgen"
	"learncircle/pkg/domain"
	"learncircle/pkg/events"
	"learncircle/pkg/queue"
)

// runContentJob generates and stores the chapters of one course. The course
// is marked failed only once the final attempt fails.
func (a *App) runContentJob(ctx context.Context, job queue.Job) error {
	logger := slog.Default().With("job_id", job.ID, "course_id", job.CourseID, "attempt", job.Attempts)
	course, ok, err := a.store.GetCourse(job.CourseID)
	if err != nil {
		return fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		logger.Warn("content_job_course_missing")
		return fmt.Errorf("course %s no longer exists", job.CourseID)
	}
	logger.Info("content_job_started")

	genCtx, cancel := context.WithTimeout(ctx, a.contentTimeout)
	defer cancel()
	chapters, err := a.generator.GenerateCourse(genCtx, contentgen.CourseRequest{
		Name:        course.Name,
		Description: course.Description,
		Content:     course.Generation.Content,
		PDFURLs:     course.Generation.PDFURLs,
		VideoURLs:   course.Generation.VideoURLs,
		Lang:        course.Generation.Lang,
	})
	if err == nil {
		if _, ok, getErr := a.store.GetCourse(course.ID); getErr == nil && !ok {
			logger.Info("content_job_course_deleted")
			return nil
		}
		err = a.storeGeneratedContent(course.ID, chapters)
	}
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown is not a generation failure; the job is redelivered.
			logger.Info("content_job_interrupted", "err", err)
			return err
		}
		logger.Warn("content_job_failed", "err", err)
		if job.Attempts >= a.maxAttempts {
			a.finishContent(ctx, job, domain.ContentError, err)
		}
		return err
	}
	a.finishContent(ctx, job, domain.ContentComplete, nil)
	logger.Info("content_job_complete", "chapters", len(chapters))
	return nil
}

func (a *App) storeGeneratedContent(courseID string, chapters []domain.Chapter) error {
	for i := range chapters {
		if chapters[i].Chapter <= 0 {
			chapters[i].Chapter = i + 1
		}
	}
	if err := a.store.UpsertChapters(courseID, chapters); err != nil {
		return fmt.Errorf("store chapters: %w", err)
	}
	return nil
}

func (a *App) finishContent(ctx context.Context, job queue.Job, state domain.ContentState, cause error) {
	if err := a.store.SetContentState(job.CourseID, state); err != nil {
		slog.Error("content_state_update_failed", "course_id", job.CourseID, "state", state, "err", err)
	}
	routingKey := events.CourseContentComplete
	evt := events.CourseContentEvent{CourseID: job.CourseID, JobID: job.ID, State: string(state)}
	if cause != nil {
		routingKey = events.CourseContentError
		evt.Error = cause.Error()
	}
	if err := a.events.Publish(ctx, routingKey, evt); err != nil {
		slog.Warn("event_publish_failed", "routing_key", routingKey, "err", err)
	}
}
