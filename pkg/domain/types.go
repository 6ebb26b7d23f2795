package domain

import (
	"encoding/json"
	"time"
)

type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleCreator UserRole = "creator"
)

// ContentState tracks asynchronous chapter generation for a course.
type ContentState string

const (
	ContentLoading  ContentState = "loading"
	ContentComplete ContentState = "complete"
	ContentError    ContentState = "error"
)

type RoleRequestStatus string

const (
	RoleRequestPending  RoleRequestStatus = "pending"
	RoleRequestApproved RoleRequestStatus = "approved"
	RoleRequestRejected RoleRequestStatus = "rejected"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GenerationRequest is the seed material sent to the content generator.
// Content is forwarded verbatim.
type GenerationRequest struct {
	Content   json.RawMessage `json:"content"`
	PDFURLs   []string        `json:"pdfUrls,omitempty"`
	VideoURLs []string        `json:"videoUrls,omitempty"`
	Lang      string          `json:"lang,omitempty"`
}

type Course struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ContentState ContentState      `json:"onContentLoading"`
	Published    bool              `json:"published"`
	CreatorID    string            `json:"-"`
	ContentJobID string            `json:"contentJobId,omitempty"`
	Generation   GenerationRequest `json:"-"`
	Content      []Chapter         `json:"content,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Chapter is identified within its course by Chapter (1-based).
type Chapter struct {
	Chapter int    `json:"chapter"`
	Title   string `json:"title"`
	Text    string `json:"text"`
	Quiz    []Quiz `json:"quiz"`
}

type Quiz struct {
	Position      int      `json:"position,omitempty"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correctAnswer"`
	Choices       []Choice `json:"choices"`
}

// Choice is identified within its quiz by Letter.
type Choice struct {
	Letter string `json:"letter"`
	Answer string `json:"answer"`
}

type Circle struct {
	ID             string    `json:"id"`
	Name           string    `json:"circleName"`
	Description    string    `json:"description"`
	InvitationLink string    `json:"invitationLink"`
	CreatorID      string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CircleSummary is a circle as listed for a member.
type CircleSummary struct {
	ID          string `json:"id"`
	Name        string `json:"circleName"`
	Description string `json:"description"`
}

// CircleMember is a member as shown inside a circle.
type CircleMember struct {
	MemberID string   `json:"memberId"`
	Name     string   `json:"name"`
	Role     UserRole `json:"role"`
}

// CourseSummary is a course as shown inside a circle or a user's course list.
type CourseSummary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	ContentState ContentState `json:"onContentLoading"`
	Published    bool         `json:"published"`
}

type CircleDetails struct {
	ID             string          `json:"id"`
	Name           string          `json:"circleName"`
	Description    string          `json:"description"`
	InvitationLink string          `json:"invitationLink"`
	Members        []CircleMember  `json:"members"`
	Courses        []CourseSummary `json:"courses"`
}

type RoleRequest struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	Message       string            `json:"message"`
	RequestedRole UserRole          `json:"requestedRole"`
	Status        RoleRequestStatus `json:"status"`
	RequestDate   time.Time         `json:"requestDate"`
}

// Summary returns the list view of a circle.
func (c Circle) Summary() CircleSummary {
	return CircleSummary{ID: c.ID, Name: c.Name, Description: c.Description}
}

// Summary returns the circle view of a course.
func (c Course) Summary() CourseSummary {
	return CourseSummary{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		ContentState: c.ContentState,
		Published:    c.Published,
	}
}
