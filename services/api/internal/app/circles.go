package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"learncircle/pkg/domain"
	"learncircle/pkg/events"
)

// Join outcomes.
const (
	JoinedCircle  = "joined"
	AlreadyMember = "already_member"
)

type CreateCircleResult struct {
	CircleID       string `json:"circleId"`
	InvitationLink string `json:"invitationLink"`
}

// CreateCircle creates a circle with its invitation link and makes the
// creator its first member.
func (a *App) CreateCircle(_ context.Context, uid, name, description string) (CreateCircleResult, error) {
	if _, err := a.requireRole(uid, domain.RoleCreator); err != nil {
		return CreateCircleResult{}, err
	}
	name = plainText(name)
	if name == "" {
		return CreateCircleResult{}, ErrMissingFields
	}
	id := uuid.NewString()
	circle := domain.Circle{
		ID:             id,
		Name:           name,
		Description:    plainText(description),
		InvitationLink: a.invitationLink(id),
		CreatorID:      uid,
		CreatedAt:      a.now(),
	}
	if err := a.store.SaveCircle(circle); err != nil {
		return CreateCircleResult{}, fmt.Errorf("save circle: %w", err)
	}
	if _, err := a.store.AddMember(id, uid); err != nil {
		return CreateCircleResult{}, fmt.Errorf("add creator: %w", err)
	}
	return CreateCircleResult{CircleID: id, InvitationLink: circle.InvitationLink}, nil
}

// JoinCircle adds the caller to the circle; joining twice is not an error.
func (a *App) JoinCircle(ctx context.Context, uid, circleID string) (string, error) {
	circleID = strings.TrimSpace(circleID)
	if circleID == "" {
		return "", ErrCircleNotFound
	}
	_, ok, err := a.store.GetCircle(circleID)
	if err != nil {
		return "", fmt.Errorf("fetch circle: %w", err)
	}
	if !ok {
		return "", ErrCircleNotFound
	}
	added, err := a.store.AddMember(circleID, uid)
	if err != nil {
		return "", fmt.Errorf("add member: %w", err)
	}
	if !added {
		return AlreadyMember, nil
	}
	evt := events.MemberJoinedEvent{CircleID: circleID, UserID: uid}
	if err := a.events.Publish(ctx, events.CircleMemberJoined, evt); err != nil {
		slog.Warn("event_publish_failed", "routing_key", events.CircleMemberJoined, "err", err)
	}
	return JoinedCircle, nil
}

// GetCircleDetails resolves members and courses concurrently.
func (a *App) GetCircleDetails(ctx context.Context, uid, circleID string) (domain.CircleDetails, error) {
	circle, err := a.requireCircleMembership(uid, strings.TrimSpace(circleID))
	if err != nil {
		return domain.CircleDetails{}, err
	}
	var (
		members []domain.CircleMember
		courses []domain.CourseSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := a.store.ListMemberIDs(circle.ID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		users, err := a.store.GetUsersByIDs(ids)
		if err != nil {
			return fmt.Errorf("fetch members: %w", err)
		}
		byID := make(map[string]domain.User, len(users))
		for _, u := range users {
			byID[u.ID] = u
		}
		members = make([]domain.CircleMember, 0, len(ids))
		for _, id := range ids {
			if u, ok := byID[id]; ok {
				members = append(members, domain.CircleMember{MemberID: u.ID, Name: u.Name, Role: u.Role})
			}
		}
		return nil
	})
	g.Go(func() error {
		ids, err := a.store.ListCourseIDsInCircle(circle.ID)
		if err != nil {
			return fmt.Errorf("list circle courses: %w", err)
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		list, err := a.store.ListCoursesByIDs(ids)
		if err != nil {
			return fmt.Errorf("fetch circle courses: %w", err)
		}
		byID := make(map[string]domain.Course, len(list))
		for _, c := range list {
			byID[c.ID] = c
		}
		courses = make([]domain.CourseSummary, 0, len(ids))
		for _, id := range ids {
			if c, ok := byID[id]; ok {
				courses = append(courses, c.Summary())
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.CircleDetails{}, err
	}
	return domain.CircleDetails{
		ID:             circle.ID,
		Name:           circle.Name,
		Description:    circle.Description,
		InvitationLink: circle.InvitationLink,
		Members:        members,
		Courses:        courses,
	}, nil
}

// ListUserCircles returns every circle the caller belongs to.
func (a *App) ListUserCircles(_ context.Context, uid string) ([]domain.CircleSummary, error) {
	circles, err := a.store.ListCirclesByMember(uid)
	if err != nil {
		return nil, fmt.Errorf("list circles: %w", err)
	}
	out := make([]domain.CircleSummary, 0, len(circles))
	for _, c := range circles {
		out = append(out, c.Summary())
	}
	return out, nil
}

func (a *App) invitationLink(circleID string) string {
	return a.appURL + "/invite/" + circleID
}
