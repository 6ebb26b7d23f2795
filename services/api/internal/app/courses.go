package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"learncircle/pkg/contentgen"
	"learncircle/pkg/domain"
	"learncircle/pkg/queue"
)

// Delete outcomes reported to clients.
const (
	DeletedCourseData = "course_data_deleted"
	DeletedCircleLink = "course_circle_deleted"
)

// CreateCourseInput is the creator-supplied seed for a new course.
type CreateCourseInput struct {
	Name        string
	Description string
	// Content is forwarded verbatim to the generator.
	Content   json.RawMessage
	CircleID  string
	PDFURLs   []string
	VideoURLs []string
	Lang      string
}

type CreateCourseResult struct {
	CourseID     string `json:"courseId"`
	ContentJobID string `json:"contentJobId"`
}

// UpdateCourseInput is a partial update; nil fields are left untouched.
type UpdateCourseInput struct {
	Name        *string
	Description *string
	Content     []domain.Chapter
}

type UnpublishedCircle struct {
	CircleID   string `json:"circleId"`
	CircleName string `json:"circleName"`
}

type UnpublishedCircles struct {
	CourseName         string              `json:"courseName"`
	CourseDescription  string              `json:"courseDescription"`
	UnpublishedCircles []UnpublishedCircle `json:"unpublishedCircles"`
}

// CreateCourse stores the course in loading state and queues its content
// generation. It returns as soon as the job is queued.
func (a *App) CreateCourse(ctx context.Context, uid string, in CreateCourseInput) (CreateCourseResult, error) {
	if _, err := a.requireRole(uid, domain.RoleCreator); err != nil {
		return CreateCourseResult{}, err
	}
	name := plainText(in.Name)
	description := plainText(in.Description)
	if name == "" || description == "" || contentMissing(in.Content) {
		return CreateCourseResult{}, ErrMissingFields
	}
	now := a.now()
	course := domain.Course{
		ID:           uuid.NewString(),
		Name:         name,
		Description:  description,
		ContentState: domain.ContentLoading,
		CreatorID:    uid,
		Generation: domain.GenerationRequest{
			Content:   bytes.TrimSpace(in.Content),
			PDFURLs:   compactStrings(in.PDFURLs),
			VideoURLs: compactStrings(in.VideoURLs),
			Lang:      strings.TrimSpace(in.Lang),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveCourse(course); err != nil {
		return CreateCourseResult{}, fmt.Errorf("save course: %w", err)
	}
	job, err := a.jobs.Enqueue(ctx, course.ID)
	if err != nil {
		_ = a.store.SetContentState(course.ID, domain.ContentError)
		return CreateCourseResult{}, fmt.Errorf("enqueue content job: %w", err)
	}
	if err := a.store.SetContentJob(course.ID, job.ID); err != nil {
		return CreateCourseResult{}, fmt.Errorf("record content job: %w", err)
	}
	res := CreateCourseResult{CourseID: course.ID, ContentJobID: job.ID}
	if circleID := strings.TrimSpace(in.CircleID); circleID != "" {
		// The course stays even when publishing fails.
		if err := a.AddCourseToCircle(ctx, uid, course.ID, []string{circleID}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// AddCourseToCircle links the course into each circle in order and then marks
// it published. It stops at the first failing circle; earlier links remain.
func (a *App) AddCourseToCircle(_ context.Context, uid, courseID string, circleIDs []string) error {
	courseID = strings.TrimSpace(courseID)
	circleIDs = compactStrings(circleIDs)
	if courseID == "" || len(circleIDs) == 0 {
		return ErrPublishFieldsMissing
	}
	course, err := a.loadCourse(courseID)
	if err != nil {
		return err
	}
	if err := requireCourseOwner(uid, course); err != nil {
		return err
	}
	for _, circleID := range circleIDs {
		if _, err := a.requireCircleMembership(uid, circleID); err != nil {
			return err
		}
		if _, err := a.store.LinkCourse(circleID, courseID); err != nil {
			return fmt.Errorf("link course: %w", err)
		}
	}
	if err := a.store.SetPublished(courseID, true); err != nil {
		return fmt.Errorf("publish course: %w", err)
	}
	return nil
}

// GetCourseByID returns the course with its full content tree.
func (a *App) GetCourseByID(_ context.Context, uid, courseID, circleID string) (domain.Course, error) {
	course, err := a.loadCourse(strings.TrimSpace(courseID))
	if err != nil {
		return domain.Course{}, err
	}
	if err := a.authorizeCourseAccess(uid, course, strings.TrimSpace(circleID)); err != nil {
		return domain.Course{}, err
	}
	chapters, err := a.store.ListChapters(course.ID)
	if err != nil {
		return domain.Course{}, fmt.Errorf("list chapters: %w", err)
	}
	course.Content = chapters
	return course, nil
}

func (a *App) GetCoursesByCreator(_ context.Context, uid string) ([]domain.Course, error) {
	if _, err := a.requireRole(uid, domain.RoleCreator); err != nil {
		return nil, err
	}
	courses, err := a.store.ListCoursesByCreator(uid)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// UpdateCourse applies a metadata patch and upserts the given chapters.
// Chapters not named in the patch are kept.
func (a *App) UpdateCourse(ctx context.Context, uid, courseID, circleID string, in UpdateCourseInput) (domain.Course, error) {
	courseID = strings.TrimSpace(courseID)
	circleID = strings.TrimSpace(circleID)
	course, err := a.loadCourse(courseID)
	if err != nil {
		return domain.Course{}, err
	}
	if err := a.authorizeCourseAccess(uid, course, circleID); err != nil {
		return domain.Course{}, err
	}
	if in.Name == nil && in.Description == nil && in.Content == nil {
		return domain.Course{}, ErrMissingFields
	}
	if in.Name != nil || in.Description != nil {
		name, description := course.Name, course.Description
		if in.Name != nil {
			name = plainText(*in.Name)
		}
		if in.Description != nil {
			description = plainText(*in.Description)
		}
		if name == "" || description == "" {
			return domain.Course{}, ErrMissingFields
		}
		if err := a.store.UpdateCourseMeta(courseID, name, description); err != nil {
			return domain.Course{}, fmt.Errorf("update course: %w", err)
		}
	}
	if in.Content != nil {
		for _, ch := range in.Content {
			if ch.Chapter <= 0 {
				return domain.Course{}, ErrInvalidChapter
			}
		}
		if err := a.store.UpsertChapters(courseID, in.Content); err != nil {
			return domain.Course{}, fmt.Errorf("upsert chapters: %w", err)
		}
	}
	return a.GetCourseByID(ctx, uid, courseID, circleID)
}

// DeleteCourse removes the course data, or only its link to circleID when a
// published course is deleted from inside a circle.
func (a *App) DeleteCourse(_ context.Context, uid, courseID, circleID string) (string, error) {
	course, err := a.loadCourse(strings.TrimSpace(courseID))
	if err != nil {
		return "", err
	}
	circleID = strings.TrimSpace(circleID)
	if course.Published && circleID != "" {
		if _, err := a.requireCircleMembership(uid, circleID); err != nil {
			return "", err
		}
		if err := a.store.UnlinkCourse(circleID, course.ID); err != nil {
			return "", fmt.Errorf("unlink course: %w", err)
		}
		return DeletedCircleLink, nil
	}
	if err := requireCourseOwner(uid, course); err != nil {
		return "", err
	}
	if err := a.store.DeleteCourse(course.ID); err != nil {
		return "", fmt.Errorf("delete course: %w", err)
	}
	return DeletedCourseData, nil
}

// GenerateChapter asks the generator for one chapter and returns its answer
// untouched. length is the raw numeric text from the request.
func (a *App) GenerateChapter(ctx context.Context, uid, title, length, lang string) (json.RawMessage, error) {
	if _, err := a.requireRole(uid, domain.RoleCreator); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	length = strings.TrimSpace(length)
	if title == "" || length == "" {
		return nil, ErrMissingFields
	}
	n, err := strconv.ParseFloat(length, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrInvalidLength
	}
	if n == 0 {
		return nil, ErrMissingFields
	}
	ctx, cancel := context.WithTimeout(ctx, a.contentTimeout)
	defer cancel()
	out, err := a.generator.GenerateChapter(ctx, contentgen.ChapterRequest{
		Title:  title,
		Length: n,
		Lang:   strings.TrimSpace(lang),
	})
	if err != nil {
		return nil, wrapError(ErrGenerationFailed, err)
	}
	return out, nil
}

// GetContentJob returns the generation job record for the course creator.
func (a *App) GetContentJob(ctx context.Context, uid, courseID string) (queue.Job, error) {
	course, err := a.loadCourse(strings.TrimSpace(courseID))
	if err != nil {
		return queue.Job{}, err
	}
	if err := requireCourseOwner(uid, course); err != nil {
		return queue.Job{}, err
	}
	if course.ContentJobID == "" {
		return queue.Job{}, ErrJobNotFound
	}
	job, ok, err := a.jobs.GetJob(ctx, course.ContentJobID)
	if err != nil {
		return queue.Job{}, fmt.Errorf("fetch job: %w", err)
	}
	if !ok {
		return queue.Job{}, ErrJobNotFound
	}
	return job, nil
}

// GetUnpublishedCircles lists the caller's circles the course is not yet linked into.
func (a *App) GetUnpublishedCircles(_ context.Context, uid, courseID string) (UnpublishedCircles, error) {
	course, err := a.loadCourse(strings.TrimSpace(courseID))
	if err != nil {
		return UnpublishedCircles{}, err
	}
	circles, err := a.store.ListCirclesByMember(uid)
	if err != nil {
		return UnpublishedCircles{}, fmt.Errorf("list circles: %w", err)
	}
	out := UnpublishedCircles{
		CourseName:         course.Name,
		CourseDescription:  course.Description,
		UnpublishedCircles: make([]UnpublishedCircle, 0, len(circles)),
	}
	for _, circle := range circles {
		linked, err := a.store.IsCourseLinked(circle.ID, course.ID)
		if err != nil {
			return UnpublishedCircles{}, fmt.Errorf("check course link: %w", err)
		}
		if !linked {
			out.UnpublishedCircles = append(out.UnpublishedCircles, UnpublishedCircle{
				CircleID:   circle.ID,
				CircleName: circle.Name,
			})
		}
	}
	return out, nil
}

func contentMissing(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null")) || bytes.Equal(t, []byte(`""`))
}

func compactStrings(in []string) []string {
	var out []string
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
