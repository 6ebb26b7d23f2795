package server

import (
	"encoding/json"

	"learncircle/pkg/domain"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createCourseRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Content     json.RawMessage `json:"content"`
	CircleID    string          `json:"circleId"`
	PDFURLs     []string        `json:"pdfUrls"`
	VideoURLs   []string        `json:"videoUrls"`
	Lang        string          `json:"lang"`
}

type publishRequest struct {
	CourseID  string   `json:"courseId"`
	CircleIDs []string `json:"circleIds"`
}

// updateCourseRequest uses pointers so omitted fields stay untouched.
type updateCourseRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Content     []domain.Chapter `json:"content"`
}

// Length is a JSON number or a numeric string.
type generateChapterRequest struct {
	Title  string          `json:"title"`
	Length json.RawMessage `json:"length"`
	Lang   string          `json:"lang"`
}

type createCircleRequest struct {
	CircleName  string `json:"circleName"`
	Description string `json:"description"`
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

type updateAuthRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type roleRequest struct {
	Message string `json:"message"`
}
