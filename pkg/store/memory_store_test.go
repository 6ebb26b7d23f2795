package store

import (
	"testing"
	"time"

	"learncircle/pkg/domain"
)

func TestMemoryStoreUpsertChaptersKeepsUnlistedChapters(t *testing.T) {
	s := NewMemoryStore()
	if err := s.SaveCourse(domain.Course{ID: "c1", CreatorID: "u1", Name: "Go"}); err != nil {
		t.Fatalf("save course: %v", err)
	}
	initial := []domain.Chapter{
		{Chapter: 2, Title: "Two", Quiz: []domain.Quiz{
			{Question: "Question 2: b", Choices: []domain.Choice{{Letter: "A", Answer: "x"}}},
			{Question: "Question 1: a"},
		}},
		{Chapter: 1, Title: "One"},
	}
	if err := s.UpsertChapters("c1", initial); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.UpsertChapters("c1", []domain.Chapter{{Chapter: 2, Title: "Two v2"}}); err != nil {
		t.Fatalf("upsert update: %v", err)
	}

	chapters, err := s.ListChapters("c1")
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Chapter != 1 || chapters[1].Title != "Two v2" {
		t.Fatalf("unexpected chapters: %+v", chapters)
	}
	if len(chapters[1].Quiz) != 0 {
		t.Fatalf("expected quizzes of chapter 2 to be replaced, got %+v", chapters[1].Quiz)
	}
}

func TestMemoryStoreUpsertChaptersSkipsUnknownCourse(t *testing.T) {
	s := NewMemoryStore()
	if err := s.UpsertChapters("gone", []domain.Chapter{{Chapter: 1, Title: "One"}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	chapters, err := s.ListChapters("gone")
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	if len(chapters) != 0 {
		t.Fatalf("expected no chapters for unknown course, got %+v", chapters)
	}
}

func TestMemoryStoreListChaptersOrdersQuizzes(t *testing.T) {
	s := NewMemoryStore()
	_ = s.SaveCourse(domain.Course{ID: "c1", CreatorID: "u1", Name: "Go"})
	_ = s.UpsertChapters("c1", []domain.Chapter{{Chapter: 1, Quiz: []domain.Quiz{
		{Question: "Question 3: c"},
		{Question: "Question 1: a"},
		{Question: "Question 2: b"},
	}}})
	chapters, err := s.ListChapters("c1")
	if err != nil {
		t.Fatalf("list chapters: %v", err)
	}
	for i, q := range chapters[0].Quiz {
		if q.Position != i+1 {
			t.Fatalf("quiz %d has position %d", i, q.Position)
		}
	}
}

func TestMemoryStoreDeleteCourseRemovesLinks(t *testing.T) {
	s := NewMemoryStore()
	_ = s.SaveCourse(domain.Course{ID: "c1", CreatorID: "u1"})
	_ = s.SaveCircle(domain.Circle{ID: "k1", CreatorID: "u1", CreatedAt: time.Now()})
	if added, err := s.LinkCourse("k1", "c1"); err != nil || !added {
		t.Fatalf("link course: added=%v err=%v", added, err)
	}
	if added, _ := s.LinkCourse("k1", "c1"); added {
		t.Fatalf("second link should report existing")
	}
	if err := s.DeleteCourse("c1"); err != nil {
		t.Fatalf("delete course: %v", err)
	}
	if _, ok, _ := s.GetCourse("c1"); ok {
		t.Fatalf("course should be gone")
	}
	ids, _ := s.ListCourseIDsInCircle("k1")
	if len(ids) != 0 {
		t.Fatalf("expected no linked courses, got %v", ids)
	}
}

func TestMemoryStoreMembership(t *testing.T) {
	s := NewMemoryStore()
	_ = s.SaveCircle(domain.Circle{ID: "k1"})
	_ = s.SaveCircle(domain.Circle{ID: "k2"})

	if added, _ := s.AddMember("k2", "u1"); !added {
		t.Fatalf("expected new member")
	}
	if added, _ := s.AddMember("k2", "u1"); added {
		t.Fatalf("expected duplicate join to be a no-op")
	}
	_, _ = s.AddMember("k1", "u1")

	circles, err := s.ListCirclesByMember("u1")
	if err != nil {
		t.Fatalf("list circles: %v", err)
	}
	if len(circles) != 2 || circles[0].ID != "k1" {
		t.Fatalf("expected circles in creation order, got %+v", circles)
	}
	ids, _ := s.ListMemberIDs("k2")
	if len(ids) != 1 {
		t.Fatalf("expected one member, got %v", ids)
	}
}

func TestMemoryStoreSaveUserReindexesEmail(t *testing.T) {
	s := NewMemoryStore()
	_ = s.SaveUser(domain.User{ID: "u1", Email: "old@example.com"})
	_ = s.SaveUser(domain.User{ID: "u1", Email: "new@example.com"})
	if ok, _ := s.HasUserEmail("old@example.com"); ok {
		t.Fatalf("old email should be released")
	}
	u, ok, _ := s.GetUserByEmail("new@example.com")
	if !ok || u.ID != "u1" {
		t.Fatalf("expected lookup by new email, got %+v ok=%v", u, ok)
	}
}

func TestMemorySessionStoreRevokeUserSessions(t *testing.T) {
	s := NewMemorySessionStore()
	token, _ := s.NewSession("u1")
	other, _ := s.NewSession("u2")
	if err := s.RevokeUserSessions("u1", time.Now().UTC()); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("u1 session should be revoked")
	}
	if id, ok, _ := s.GetUserIDByToken(other); !ok || id != "u2" {
		t.Fatalf("u2 session should survive")
	}
}
