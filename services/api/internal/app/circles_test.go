package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"learncircle/pkg/domain"
)

func TestCreateCircle(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "u1", domain.RoleUser)
	ctx := context.Background()

	res, err := env.app.CreateCircle(ctx, "c1", "<h1>Book club</h1>", "weekly")
	if err != nil {
		t.Fatalf("create circle: %v", err)
	}
	if res.InvitationLink != "https://learncircle.test/invite/"+res.CircleID {
		t.Fatalf("unexpected invitation link %q", res.InvitationLink)
	}
	circle, ok, _ := env.store.GetCircle(res.CircleID)
	if !ok || circle.Name != "Book club" || circle.InvitationLink != res.InvitationLink {
		t.Fatalf("unexpected stored circle %+v", circle)
	}
	if member, _ := env.store.IsMember(res.CircleID, "c1"); !member {
		t.Fatalf("creator should be the first member")
	}

	if _, err := env.app.CreateCircle(ctx, "u1", "x", ""); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	if _, err := env.app.CreateCircle(ctx, "c1", " ", ""); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}
}

func TestJoinCircleIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "u1", domain.RoleUser)
	ctx := context.Background()
	circleID := env.seedCircle(t, "c1")

	first, err := env.app.JoinCircle(ctx, "u1", circleID)
	if err != nil || first != JoinedCircle {
		t.Fatalf("first join: %q %v", first, err)
	}
	second, err := env.app.JoinCircle(ctx, "u1", circleID)
	if err != nil || second != AlreadyMember {
		t.Fatalf("second join: %q %v", second, err)
	}
	ids, _ := env.store.ListMemberIDs(circleID)
	if len(ids) != 2 {
		t.Fatalf("expected creator and one member, got %v", ids)
	}
	if _, err := env.app.JoinCircle(ctx, "u1", "missing"); !errors.Is(err, ErrCircleNotFound) {
		t.Fatalf("expected ErrCircleNotFound, got %v", err)
	}
}

func TestGetCircleDetails(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "u1", domain.RoleUser)
	env.seedUser(t, "u2", domain.RoleUser)
	ctx := context.Background()
	circleID := env.seedCircle(t, "c1", "u1")
	res, _ := env.app.CreateCourse(ctx, "c1", createInput())
	if err := env.app.AddCourseToCircle(ctx, "c1", res.CourseID, []string{circleID}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	details, err := env.app.GetCircleDetails(ctx, "u1", circleID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if len(details.Members) != 2 || details.Members[0].MemberID != "c1" || details.Members[1].Role != domain.RoleUser {
		t.Fatalf("unexpected members %+v", details.Members)
	}
	if len(details.Courses) != 1 || details.Courses[0].ID != res.CourseID || !details.Courses[0].Published {
		t.Fatalf("unexpected courses %+v", details.Courses)
	}
	if !strings.HasSuffix(details.InvitationLink, circleID) {
		t.Fatalf("unexpected invitation link %q", details.InvitationLink)
	}

	if _, err := env.app.GetCircleDetails(ctx, "u2", circleID); !errors.Is(err, ErrNotCircleMember) {
		t.Fatalf("expected ErrNotCircleMember, got %v", err)
	}
	if _, err := env.app.GetCircleDetails(ctx, "u1", "missing"); !errors.Is(err, ErrCircleNotFound) {
		t.Fatalf("expected ErrCircleNotFound, got %v", err)
	}
}

func TestGetCircleDetailsStopsOnCancelledContext(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	circleID := env.seedCircle(t, "c1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.app.GetCircleDetails(ctx, "c1", circleID); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListUserCircles(t *testing.T) {
	env := newTestEnv(t, nil, 1)
	env.seedUser(t, "c1", domain.RoleCreator)
	env.seedUser(t, "u1", domain.RoleUser)
	ctx := context.Background()
	joined := env.seedCircle(t, "c1", "u1")
	env.seedCircle(t, "c1")

	circles, err := env.app.ListUserCircles(ctx, "u1")
	if err != nil {
		t.Fatalf("list circles: %v", err)
	}
	if len(circles) != 1 || circles[0].ID != joined {
		t.Fatalf("unexpected circles %+v", circles)
	}
	all, _ := env.app.ListUserCircles(ctx, "c1")
	if len(all) != 2 {
		t.Fatalf("expected creator in both circles, got %+v", all)
	}
}
