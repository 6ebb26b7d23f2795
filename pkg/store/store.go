package store

import (
	"time"

	"learncircle/pkg/domain"
)

// Store defines persistence operations for users, courses and circles.
// Lookups return (value, found, error); a missing record is not an error.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	GetUsersByIDs(ids []string) ([]domain.User, error)
	SaveRoleRequest(domain.RoleRequest) error
	GetPendingRoleRequest(userID string) (domain.RoleRequest, bool, error)

	// courses
	SaveCourse(domain.Course) error
	GetCourse(id string) (domain.Course, bool, error)
	ListCoursesByCreator(creatorID string) ([]domain.Course, error)
	ListCoursesByIDs(ids []string) ([]domain.Course, error)
	UpdateCourseMeta(courseID, name, description string) error
	SetContentState(courseID string, state domain.ContentState) error
	SetContentJob(courseID, jobID string) error
	SetPublished(courseID string, published bool) error
	UpsertChapters(courseID string, chapters []domain.Chapter) error
	ListChapters(courseID string) ([]domain.Chapter, error)
	DeleteCourse(id string) error

	// circles
	SaveCircle(domain.Circle) error
	GetCircle(id string) (domain.Circle, bool, error)
	ListCirclesByMember(userID string) ([]domain.Circle, error)
	AddMember(circleID, userID string) (bool, error)
	IsMember(circleID, userID string) (bool, error)
	ListMemberIDs(circleID string) ([]string, error)
	LinkCourse(circleID, courseID string) (bool, error)
	UnlinkCourse(circleID, courseID string) error
	IsCourseLinked(circleID, courseID string) (bool, error)
	ListCourseIDsInCircle(circleID string) ([]string, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// UserSessionRevoker is an optional capability that revokes all sessions
// issued for a user since a cutoff time.
type UserSessionRevoker interface {
	RevokeUserSessions(userID string, since time.Time) error
}

// JWK represents a JSON Web Key entry used by JWKS endpoints.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// JWKSProvider is an optional capability exposed by session stores that can
// publish JSON Web Keys.
type JWKSProvider interface {
	JWKS() []JWK
}
