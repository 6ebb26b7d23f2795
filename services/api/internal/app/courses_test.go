package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"learncircle/pkg/domain"
	"learncircle/pkg/queue"
)

func generatedChapters() []domain.Chapter {
	return []domain.Chapter{
		{Chapter: 2, Title: "Two", Text: "second", Quiz: []domain.Quiz{
			{Question: "Question 2: b?", CorrectAnswer: "A", Choices: []domain.Choice{{Letter: "A", Answer: "yes"}}},
			{Question: "Question 1: a?", CorrectAnswer: "B", Choices: []domain.Choice{{Letter: "B", Answer: "no"}}},
		}},
		{Chapter: 1, Title: "One", Text: "first"},
	}
}

func createInput() CreateCourseInput {
	return CreateCourseInput{
		Name:        "Intro",
		Description: "D",
		Content:     json.RawMessage(`[]`),
	}
}

func TestCreateCourseRequiresCreator(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "u1", domain.RoleUser)

	_, err := env.app.CreateCourse(context.Background(), "u1", createInput())
	if !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if _, err := env.app.CreateCourse(context.Background(), "ghost", createInput()); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateCourseMissingFields(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	tests := []struct {
		name   string
		mutate func(*CreateCourseInput)
	}{
		{"no name", func(in *CreateCourseInput) { in.Name = "  " }},
		{"markup only name", func(in *CreateCourseInput) { in.Name = "<b></b>" }},
		{"no description", func(in *CreateCourseInput) { in.Description = "" }},
		{"no content", func(in *CreateCourseInput) { in.Content = nil }},
		{"null content", func(in *CreateCourseInput) { in.Content = json.RawMessage("null") }},
		{"empty string content", func(in *CreateCourseInput) { in.Content = json.RawMessage(`""`) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := createInput()
			tc.mutate(&in)
			if _, err := env.app.CreateCourse(context.Background(), "c1", in); !errors.Is(err, ErrMissingFields) {
				t.Fatalf("expected ErrMissingFields, got %v", err)
			}
		})
	}
}

func TestCreateCourseCompletesInBackground(t *testing.T) {
	gen := &fakeGenerator{chapters: generatedChapters(), release: make(chan struct{})}
	env := newTestEnv(t, gen, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.startWorkers(t)

	in := createInput()
	in.PDFURLs = []string{" https://files/a.pdf ", ""}
	in.Lang = "en"
	res, err := env.app.CreateCourse(context.Background(), "c1", in)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if res.CourseID == "" || res.ContentJobID == "" {
		t.Fatalf("expected course and job ids, got %+v", res)
	}

	course, err := env.app.GetCourseByID(context.Background(), "c1", res.CourseID, "")
	if err != nil {
		t.Fatalf("get course: %v", err)
	}
	if course.ContentState != domain.ContentLoading || len(course.Content) != 0 {
		t.Fatalf("expected loading course without content, got %+v", course)
	}

	close(gen.release)
	waitForContentState(t, env.store, res.CourseID, domain.ContentComplete)

	course, err = env.app.GetCourseByID(context.Background(), "c1", res.CourseID, "")
	if err != nil {
		t.Fatalf("get course after generation: %v", err)
	}
	if len(course.Content) != 2 || course.Content[0].Chapter != 1 || course.Content[1].Chapter != 2 {
		t.Fatalf("unexpected chapter order: %+v", course.Content)
	}
	quiz := course.Content[1].Quiz
	if len(quiz) != 2 || quiz[0].Question != "Question 1: a?" || quiz[1].Question != "Question 2: b?" {
		t.Fatalf("unexpected quiz order: %+v", quiz)
	}

	gen.mu.Lock()
	req := gen.courseReqs[0]
	gen.mu.Unlock()
	if req.Name != "Intro" || req.Lang != "en" || len(req.PDFURLs) != 1 || req.PDFURLs[0] != "https://files/a.pdf" {
		t.Fatalf("unexpected generator request: %+v", req)
	}
	if string(req.Content) != "[]" {
		t.Fatalf("content not forwarded verbatim: %s", req.Content)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		job, err := env.app.GetContentJob(context.Background(), "c1", res.CourseID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == queue.StatusComplete {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job status %q, want complete", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCreateCourseGenerationFailureMarksError(t *testing.T) {
	gen := &fakeGenerator{courseErr: errors.New("generator down")}
	env := newTestEnv(t, gen, 2)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.startWorkers(t)

	res, err := env.app.CreateCourse(context.Background(), "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	waitForContentState(t, env.store, res.CourseID, domain.ContentError)
	if calls := gen.courseCalls(); calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestContentJobInterruptedByShutdownStaysLoading(t *testing.T) {
	gen := &fakeGenerator{chapters: generatedChapters(), release: make(chan struct{})}
	env := newTestEnv(t, gen, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	workerCtx, stop := context.WithCancel(context.Background())
	defer stop()
	env.app.StartWorkers(workerCtx, 1)

	res, err := env.app.CreateCourse(context.Background(), "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	waitFor(t, func() bool { return gen.courseCalls() == 1 })
	stop()

	waitFor(t, func() bool {
		job, ok, _ := env.jobs.GetJob(context.Background(), res.ContentJobID)
		return ok && job.Status == queue.StatusPending
	})
	job, _, _ := env.jobs.GetJob(context.Background(), res.ContentJobID)
	if job.Attempts != 0 {
		t.Fatalf("interrupted attempt should not count, got %d", job.Attempts)
	}
	course, _, _ := env.store.GetCourse(res.CourseID)
	if course.ContentState != domain.ContentLoading {
		t.Fatalf("expected course to stay loading, got %q", course.ContentState)
	}
	if keys := env.events.published(); len(keys) != 0 {
		t.Fatalf("expected no content events, got %v", keys)
	}
}

func TestContentJobForDeletedCourseStoresNothing(t *testing.T) {
	gen := &fakeGenerator{chapters: generatedChapters(), release: make(chan struct{})}
	env := newTestEnv(t, gen, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.startWorkers(t)
	ctx := context.Background()

	res, err := env.app.CreateCourse(ctx, "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	waitFor(t, func() bool { return gen.courseCalls() == 1 })
	if _, err := env.app.DeleteCourse(ctx, "c1", res.CourseID, ""); err != nil {
		t.Fatalf("delete course: %v", err)
	}
	close(gen.release)

	waitFor(t, func() bool {
		job, ok, _ := env.jobs.GetJob(ctx, res.ContentJobID)
		return ok && job.Status == queue.StatusComplete
	})
	chapters, err := env.store.ListChapters(res.CourseID)
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 0 {
		t.Fatalf("chapters stored for deleted course: %d", len(chapters))
	}
	if keys := env.events.published(); len(keys) != 0 {
		t.Fatalf("expected no content events, got %v", keys)
	}
}

func TestCreateCourseWithUnknownCircleKeepsCourse(t *testing.T) {
	env := newTestEnv(t, &fakeGenerator{chapters: generatedChapters()}, 1)
	env.seedUser(t, "c1", domain.RoleCreator)

	in := createInput()
	in.CircleID = "missing"
	res, err := env.app.CreateCourse(context.Background(), "c1", in)
	if !errors.Is(err, ErrCircleNotFound) {
		t.Fatalf("expected ErrCircleNotFound, got %v", err)
	}
	if _, ok, _ := env.store.GetCourse(res.CourseID); !ok {
		t.Fatalf("course should not be rolled back")
	}
}

func TestCourseVisibility(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "c2", domain.RoleCreator)
	env.seedUser(t, "member", domain.RoleUser)
	env.seedUser(t, "outsider", domain.RoleUser)
	ctx := context.Background()

	res, err := env.app.CreateCourse(ctx, "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if _, err := env.app.GetCourseByID(ctx, "member", res.CourseID, ""); !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("unpublished course visible to non-creator: %v", err)
	}

	circle := env.seedCircle(t, "c1", "member")
	other := env.seedCircle(t, "c2", "outsider")
	if err := env.app.AddCourseToCircle(ctx, "c1", res.CourseID, []string{circle}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	tests := []struct {
		name     string
		uid      string
		circleID string
		want     error
	}{
		{"member with circle", "member", circle, nil},
		{"member without circle", "member", "", ErrCircleRequired},
		{"non-member", "outsider", circle, ErrNotCircleMember},
		{"member of unrelated circle", "outsider", other, ErrCourseNotInCircle},
		{"unknown circle", "member", "nope", ErrCircleNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.app.GetCourseByID(ctx, tc.uid, res.CourseID, tc.circleID)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected access, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if _, err := env.app.GetCourseByID(ctx, "member", "missing", circle); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestAddCourseToCircleStopsAtFirstError(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "c2", domain.RoleCreator)
	ctx := context.Background()

	res, err := env.app.CreateCourse(ctx, "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	first := env.seedCircle(t, "c1")
	foreign := env.seedCircle(t, "c2")
	last := env.seedCircle(t, "c1")

	err = env.app.AddCourseToCircle(ctx, "c1", res.CourseID, []string{first, foreign, last})
	if !errors.Is(err, ErrNotCircleMember) {
		t.Fatalf("expected ErrNotCircleMember, got %v", err)
	}
	if linked, _ := env.store.IsCourseLinked(first, res.CourseID); !linked {
		t.Fatalf("earlier circle should stay linked")
	}
	if linked, _ := env.store.IsCourseLinked(last, res.CourseID); linked {
		t.Fatalf("later circle should not be attempted")
	}

	if err := env.app.AddCourseToCircle(ctx, "c2", res.CourseID, []string{foreign}); !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("expected ErrNotCourseOwner, got %v", err)
	}
	if err := env.app.AddCourseToCircle(ctx, "c1", res.CourseID, nil); !errors.Is(err, ErrPublishFieldsMissing) {
		t.Fatalf("expected ErrPublishFieldsMissing, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := env.app.AddCourseToCircle(ctx, "c1", res.CourseID, []string{last}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	ids, _ := env.store.ListCourseIDsInCircle(last)
	if len(ids) != 1 {
		t.Fatalf("expected exactly one link, got %v", ids)
	}
	course, _, _ := env.store.GetCourse(res.CourseID)
	if !course.Published {
		t.Fatalf("expected course published")
	}
}

func TestUpdateCourseKeepsOmittedChapters(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	ctx := context.Background()
	res, err := env.app.CreateCourse(ctx, "c1", createInput())
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if err := env.store.UpsertChapters(res.CourseID, generatedChapters()); err != nil {
		t.Fatalf("seed chapters: %v", err)
	}

	name := "Renamed"
	updated, err := env.app.UpdateCourse(ctx, "c1", res.CourseID, "", UpdateCourseInput{
		Name: &name,
		Content: []domain.Chapter{{Chapter: 2, Title: "Two v2", Text: "new", Quiz: []domain.Quiz{
			{Question: "Question 1: only?", CorrectAnswer: "A"},
		}}},
	})
	if err != nil {
		t.Fatalf("update course: %v", err)
	}
	if updated.Name != "Renamed" || updated.Description != "D" {
		t.Fatalf("unexpected metadata: %+v", updated)
	}
	if len(updated.Content) != 2 || updated.Content[0].Title != "One" || updated.Content[1].Title != "Two v2" {
		t.Fatalf("unexpected content: %+v", updated.Content)
	}
	if len(updated.Content[1].Quiz) != 1 {
		t.Fatalf("expected quizzes to be replaced, got %+v", updated.Content[1].Quiz)
	}

	_, err = env.app.UpdateCourse(ctx, "c1", res.CourseID, "", UpdateCourseInput{Content: []domain.Chapter{{Title: "x"}}})
	if !errors.Is(err, ErrInvalidChapter) {
		t.Fatalf("expected ErrInvalidChapter, got %v", err)
	}
	if _, err := env.app.UpdateCourse(ctx, "c1", res.CourseID, "", UpdateCourseInput{}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestDeleteCourse(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "member", domain.RoleUser)
	ctx := context.Background()

	unpublished, _ := env.app.CreateCourse(ctx, "c1", createInput())
	if _, err := env.app.DeleteCourse(ctx, "member", unpublished.CourseID, ""); !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("expected ErrNotCourseOwner, got %v", err)
	}
	result, err := env.app.DeleteCourse(ctx, "c1", unpublished.CourseID, "")
	if err != nil || result != DeletedCourseData {
		t.Fatalf("delete unpublished: result=%q err=%v", result, err)
	}
	if _, err := env.app.GetCourseByID(ctx, "c1", unpublished.CourseID, ""); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound after delete, got %v", err)
	}

	published, _ := env.app.CreateCourse(ctx, "c1", createInput())
	circle := env.seedCircle(t, "c1", "member")
	if err := env.app.AddCourseToCircle(ctx, "c1", published.CourseID, []string{circle}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	result, err = env.app.DeleteCourse(ctx, "member", published.CourseID, circle)
	if err != nil || result != DeletedCircleLink {
		t.Fatalf("delete from circle: result=%q err=%v", result, err)
	}
	if _, ok, _ := env.store.GetCourse(published.CourseID); !ok {
		t.Fatalf("course data should remain after unlinking")
	}
	if linked, _ := env.store.IsCourseLinked(circle, published.CourseID); linked {
		t.Fatalf("course should be unlinked")
	}
}

func TestGenerateChapter(t *testing.T) {
	gen := &fakeGenerator{chapterResp: json.RawMessage(`{"title":"T","text":"body"}`)}
	env := newTestEnv(t, gen, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "u1", domain.RoleUser)
	ctx := context.Background()

	tests := []struct {
		name   string
		uid    string
		title  string
		length string
		want   error
	}{
		{"ok", "c1", "Go", "5", nil},
		{"fractional", "c1", "Go", "2.5", nil},
		{"not creator", "u1", "Go", "5", ErrNotCreator},
		{"missing title", "c1", "", "5", ErrMissingFields},
		{"missing length", "c1", "Go", "", ErrMissingFields},
		{"zero length", "c1", "Go", "0", ErrMissingFields},
		{"non numeric", "c1", "Go", "five", ErrInvalidLength},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := env.app.GenerateChapter(ctx, tc.uid, tc.title, tc.length, "en")
			if tc.want != nil {
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("generate chapter: %v", err)
			}
			if string(out) != `{"title":"T","text":"body"}` {
				t.Fatalf("response not verbatim: %s", out)
			}
		})
	}
	if got := gen.chapterReqs[1].Length; got != 2.5 {
		t.Fatalf("length = %v, want 2.5", got)
	}

	gen.chapterErr = errors.New("upstream 502")
	_, err := env.app.GenerateChapter(ctx, "c1", "Go", "5", "")
	if !errors.Is(err, ErrGenerationFailed) || KindOf(err) != KindUpstream {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestGetContentJobOwnerOnly(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "c2", domain.RoleCreator)
	ctx := context.Background()
	res, _ := env.app.CreateCourse(ctx, "c1", createInput())

	job, err := env.app.GetContentJob(ctx, "c1", res.CourseID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.ID != res.ContentJobID || job.Status != queue.StatusPending {
		t.Fatalf("unexpected job %+v", job)
	}
	if _, err := env.app.GetContentJob(ctx, "c2", res.CourseID); !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("expected ErrNotCourseOwner, got %v", err)
	}
}

func TestGetUnpublishedCircles(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	ctx := context.Background()
	res, _ := env.app.CreateCourse(ctx, "c1", createInput())
	linked := env.seedCircle(t, "c1")
	open := env.seedCircle(t, "c1")
	if err := env.app.AddCourseToCircle(ctx, "c1", res.CourseID, []string{linked}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out, err := env.app.GetUnpublishedCircles(ctx, "c1", res.CourseID)
	if err != nil {
		t.Fatalf("unpublished circles: %v", err)
	}
	if out.CourseName != "Intro" || out.CourseDescription != "D" {
		t.Fatalf("unexpected course info: %+v", out)
	}
	if len(out.UnpublishedCircles) != 1 || out.UnpublishedCircles[0].CircleID != open {
		t.Fatalf("unexpected circles: %+v", out.UnpublishedCircles)
	}
	if _, err := env.app.GetUnpublishedCircles(ctx, "c1", "missing"); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}
