package events

import (
	"context"
	"time"
)

// Routing keys.
const (
	CourseContentComplete = "course.content.complete"
	CourseContentError    = "course.content.error"
	CircleMemberJoined    = "circle.member.joined"
)

const DefaultExchange = "learncircle.events"

type CourseContentEvent struct {
	CourseID string `json:"courseId"`
	JobID    string `json:"jobId"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

type MemberJoinedEvent struct {
	CircleID string `json:"circleId"`
	UserID   string `json:"userId"`
}

// Envelope wraps every published payload.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Publisher emits domain events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
