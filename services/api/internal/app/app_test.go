package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"learncircle/pkg/contentgen"
	"learncircle/pkg/domain"
	"learncircle/pkg/queue"
	"learncircle/pkg/storage"
	"learncircle/pkg/store"
)

type fakeGenerator struct {
	mu          sync.Mutex
	chapters    []domain.Chapter
	courseErr   error
	chapterResp json.RawMessage
	chapterErr  error
	release     chan struct{}
	courseReqs  []contentgen.CourseRequest
	chapterReqs []contentgen.ChapterRequest
}

func (g *fakeGenerator) GenerateCourse(ctx context.Context, req contentgen.CourseRequest) ([]domain.Chapter, error) {
	g.mu.Lock()
	g.courseReqs = append(g.courseReqs, req)
	release := g.release
	g.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.courseErr != nil {
		return nil, g.courseErr
	}
	out := make([]domain.Chapter, len(g.chapters))
	copy(out, g.chapters)
	return out, nil
}

func (g *fakeGenerator) GenerateChapter(_ context.Context, req contentgen.ChapterRequest) (json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.chapterReqs = append(g.chapterReqs, req)
	if g.chapterErr != nil {
		return nil, g.chapterErr
	}
	return g.chapterResp, nil
}

func (g *fakeGenerator) courseCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.courseReqs)
}

type testEnv struct {
	app      *App
	store    *store.MemoryStore
	sessions *store.MemorySessionStore
	jobs     *queue.MemoryJobQueue
	objects  *storage.MemoryStore
	gen      *fakeGenerator
	events   *recordingPublisher
}

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func newTestEnv(t *testing.T, gen *fakeGenerator, maxAttempts int) *testEnv {
	t.Helper()
	if gen == nil {
		gen = &fakeGenerator{}
	}
	env := &testEnv{
		store:    store.NewMemoryStore(),
		sessions: store.NewMemorySessionStore(),
		jobs:     queue.NewMemoryJobQueue(16, maxAttempts),
		objects:  storage.NewMemoryStore(),
		gen:      gen,
		events:   &recordingPublisher{},
	}
	a, err := New(Config{
		Store:              env.store,
		Sessions:           env.sessions,
		Jobs:               env.jobs,
		Generator:          gen,
		Objects:            env.objects,
		Events:             env.events,
		AppURL:             "https://learncircle.test/",
		ContentTimeout:     5 * time.Second,
		ContentMaxAttempts: maxAttempts,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	return env
}

func (e *testEnv) startWorkers(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.app.StartWorkers(ctx, 1)
}

func (e *testEnv) seedUser(t *testing.T, id string, role domain.UserRole) domain.User {
	t.Helper()
	u := domain.User{ID: id, Email: id + "@example.com", Name: "Name " + id, Role: role}
	if err := e.store.SaveUser(u); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func (e *testEnv) seedCircle(t *testing.T, creatorID string, members ...string) string {
	t.Helper()
	res, err := e.app.CreateCircle(context.Background(), creatorID, "Circle of "+creatorID, "desc")
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	for _, m := range members {
		if _, err := e.app.JoinCircle(context.Background(), m, res.CircleID); err != nil {
			t.Fatalf("join circle: %v", err)
		}
	}
	return res.CircleID
}

func waitForContentState(t *testing.T, s *store.MemoryStore, courseID string, want domain.ContentState) domain.Course {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c, ok, err := s.GetCourse(courseID)
		if err != nil || !ok {
			t.Fatalf("get course: ok=%v err=%v", ok, err)
		}
		if c.ContentState == want {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatalf("course %s state %q, want %q", courseID, c.ContentState, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatalf("expected error without store")
	}
	_, err := New(Config{
		Store:     store.NewMemoryStore(),
		Sessions:  store.NewMemorySessionStore(),
		Jobs:      queue.NewMemoryJobQueue(1, 1),
		Generator: &fakeGenerator{},
	})
	if err == nil {
		t.Fatalf("expected error without app URL")
	}
}

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrMissingFields, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrNotCreator, http.StatusForbidden},
		{ErrCircleRequired, http.StatusForbidden},
		{ErrCourseNotFound, http.StatusNotFound},
		{ErrEmailAlreadyExists, http.StatusConflict},
		{ErrGenerationFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			if got := KindOf(tc.err).HTTPStatus(); got != tc.want {
				t.Fatalf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestWrappedSentinelMatches(t *testing.T) {
	err := wrapError(ErrGenerationFailed, errors.New("timeout"))
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("unexpected match with unrelated sentinel")
	}
	if got := PublicMessage(err); got != ErrGenerationFailed.Message {
		t.Fatalf("public message = %q", got)
	}
	if got := PublicMessage(errors.New("db down")); got != "Internal server error" {
		t.Fatalf("internal message leaked: %q", got)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Intro to Go ", "Intro to Go"},
		{"<b>Intro</b> to <i>Go</i>", "Intro to Go"},
		{"Fish &amp; Chips", "Fish & Chips"},
		{"Hi<script>alert(1)</script> there", "Hi there"},
		{"<p>  spaced\n\n text </p>", "spaced text"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := plainText(tc.in); got != tc.want {
				t.Fatalf("plainText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
