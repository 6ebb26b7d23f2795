package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string
	Phone        string
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type RoleRequestModel struct {
	ID            string    `gorm:"primaryKey"`
	UserID        string    `gorm:"not null;index"`
	Message       string    `gorm:"type:text"`
	RequestedRole string    `gorm:"not null"`
	Status        string    `gorm:"not null;index"`
	RequestDate   time.Time `gorm:"not null"`
}

type CourseModel struct {
	ID           string `gorm:"primaryKey"`
	CreatorID    string `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	Description  string `gorm:"type:text"`
	ContentState string `gorm:"not null"`
	Published    bool   `gorm:"not null;default:false"`
	ContentJobID string
	Generation   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null"`
	UpdatedAt    time.Time      `gorm:"not null"`
}

// ChapterModel rows are unique per (course_id, number).
type ChapterModel struct {
	ID       uint   `gorm:"primaryKey"`
	CourseID string `gorm:"not null;uniqueIndex:idx_chapter_course_number"`
	Number   int    `gorm:"not null;uniqueIndex:idx_chapter_course_number"`
	Title    string `gorm:"not null"`
	Text     string `gorm:"type:text"`
}

type QuizModel struct {
	ID            uint   `gorm:"primaryKey"`
	ChapterID     uint   `gorm:"not null;index"`
	Position      int    `gorm:"not null"`
	Question      string `gorm:"type:text;not null"`
	CorrectAnswer string
}

type ChoiceModel struct {
	QuizID uint   `gorm:"primaryKey"`
	Letter string `gorm:"primaryKey"`
	Answer string `gorm:"type:text"`
}

type CircleModel struct {
	ID             string `gorm:"primaryKey"`
	CreatorID      string `gorm:"not null;index"`
	Name           string `gorm:"not null"`
	Description    string `gorm:"type:text"`
	InvitationLink string
	CreatedAt      time.Time `gorm:"not null;index"`
}

type CircleMemberModel struct {
	CircleID string    `gorm:"primaryKey"`
	UserID   string    `gorm:"primaryKey;index"`
	JoinedAt time.Time `gorm:"not null"`
}

type CircleCourseModel struct {
	CircleID string    `gorm:"primaryKey"`
	CourseID string    `gorm:"primaryKey;index"`
	LinkedAt time.Time `gorm:"not null"`
}
