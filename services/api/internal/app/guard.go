package app

import (
	"fmt"

	"learncircle/pkg/domain"
)

// requireRole loads the caller's profile and checks its role.
func (a *App) requireRole(uid string, role domain.UserRole) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	if user.Role != role {
		return domain.User{}, ErrNotCreator
	}
	return user, nil
}

// requireCircleMembership loads the circle and checks that uid belongs to it.
func (a *App) requireCircleMembership(uid, circleID string) (domain.Circle, error) {
	circle, ok, err := a.store.GetCircle(circleID)
	if err != nil {
		return domain.Circle{}, fmt.Errorf("fetch circle: %w", err)
	}
	if !ok {
		return domain.Circle{}, ErrCircleNotFound
	}
	member, err := a.store.IsMember(circleID, uid)
	if err != nil {
		return domain.Circle{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return domain.Circle{}, ErrNotCircleMember
	}
	return circle, nil
}

func (a *App) loadCourse(courseID string) (domain.Course, error) {
	if courseID == "" {
		return domain.Course{}, ErrCourseNotFound
	}
	course, ok, err := a.store.GetCourse(courseID)
	if err != nil {
		return domain.Course{}, fmt.Errorf("fetch course: %w", err)
	}
	if !ok {
		return domain.Course{}, ErrCourseNotFound
	}
	return course, nil
}

func requireCourseOwner(uid string, course domain.Course) error {
	if course.CreatorID != uid {
		return ErrNotCourseOwner
	}
	return nil
}

// authorizeCourseAccess applies the visibility rule chosen by the published flag:
// an unpublished course belongs to its creator, a published one to the members
// of the circles it is linked into.
func (a *App) authorizeCourseAccess(uid string, course domain.Course, circleID string) error {
	if !course.Published {
		return requireCourseOwner(uid, course)
	}
	if circleID == "" {
		return ErrCircleRequired
	}
	if _, err := a.requireCircleMembership(uid, circleID); err != nil {
		return err
	}
	linked, err := a.store.IsCourseLinked(circleID, course.ID)
	if err != nil {
		return fmt.Errorf("check course link: %w", err)
	}
	if !linked {
		return ErrCourseNotInCircle
	}
	return nil
}
