package app

import (
	"errors"
	"net/http"
)

// Kind classifies workflow failures; handlers map it to an HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindAuthentication
	KindUnauthorized
	KindNotFound
	KindConflict
	KindUpstream
)

// HTTPStatus is the single place a failure kind becomes a status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Code is the stable machine-readable name of the kind.
func (k Kind) Code() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindAuthentication:
		return "authentication_failed"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpstream:
		return "upstream_failure"
	default:
		return "internal_error"
	}
}

// Error is a workflow failure with a user-facing message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and message so a wrapped sentinel still satisfies errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// wrapError keeps the sentinel's kind and message and records the cause.
func wrapError(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

func invalidInput(msg string) *Error {
	return newError(KindInvalidInput, msg)
}

// KindOf returns KindInternal for anything that is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// PublicMessage hides internal failure details from clients.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return "Internal server error"
}

var (
	ErrUserNotFound    = newError(KindNotFound, "User not found")
	ErrProfileNotFound = newError(KindNotFound, "User profile does not exist")
	ErrCourseNotFound  = newError(KindNotFound, "Course not found")
	ErrCircleNotFound  = newError(KindNotFound, "Circle not found")
	ErrJobNotFound     = newError(KindNotFound, "Content job not found")

	ErrNotCreator        = newError(KindUnauthorized, "Unauthorized. Only creators can perform this action.")
	ErrNotCourseOwner    = newError(KindUnauthorized, "Unauthorized. Only the course creator can perform this action.")
	ErrNotCircleMember   = newError(KindUnauthorized, "Unauthorized. You are not a member of this circle.")
	ErrCircleRequired    = newError(KindUnauthorized, "Unauthorized. A circleId is required to access a published course.")
	ErrCourseNotInCircle = newError(KindUnauthorized, "Unauthorized. Course is not published in this circle.")

	ErrMissingFields        = newError(KindInvalidInput, "Missing required fields!")
	ErrPublishFieldsMissing = newError(KindInvalidInput, "Missing required fields or invalid data!")
	ErrInvalidLength        = newError(KindInvalidInput, "Course Length must be a number!")
	ErrAlreadyCreator       = newError(KindInvalidInput, "User is already a creator.")
	ErrFileRequired         = newError(KindInvalidInput, "A PDF file is required.")
	ErrFileTooLarge         = newError(KindInvalidInput, "File too large. The maximum size is 10MB.")
	ErrInvalidPDF           = newError(KindInvalidInput, "Uploaded file is not a valid PDF.")
	ErrInvalidChapter       = newError(KindInvalidInput, "Each chapter needs a positive chapter number.")

	ErrEmailAlreadyExists = newError(KindConflict, "Email already registered!")

	ErrInvalidCredentials = newError(KindAuthentication, "Invalid email or password!")
	ErrInvalidToken       = newError(KindAuthentication, "Invalid or expired token.")

	ErrGenerationFailed = newError(KindUpstream, "An error occurred while generating chapter.")
)
