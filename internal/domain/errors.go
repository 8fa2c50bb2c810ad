package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotAuthenticated is returned when a principal lacks an identity or email.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrValidationFailed is matched by *ValidationError.
	ErrValidationFailed = errors.New("validation failed")
	// ErrUnauthorized indicates the requester does not own the quiz.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates a malformed submission.
	ErrInvalidInput = errors.New("invalid input")
	// ErrPersistenceFailed indicates a transaction was aborted.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrPublicIDTaken is returned by stores when a public token collides.
	ErrPublicIDTaken = errors.New("public id already taken")
	// ErrDuplicateUser is returned by stores when email or external id is already linked.
	ErrDuplicateUser = errors.New("user already exists")
)

// ValidationError carries field-level detail, keyed by field path
// (e.g. "questions[1].options").
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidationFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
