package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random 32-character hex id for request ids and consumer names.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
