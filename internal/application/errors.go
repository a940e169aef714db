package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested entity is not cached.
	ErrNotFound = errors.New("application: not found")
	// ErrUnknownKind is returned for kinds the controller does not manage.
	ErrUnknownKind = errors.New("application: unknown kind")
	// ErrReadOnlyKind is returned when a mutation targets a kind that cannot be written.
	ErrReadOnlyKind = errors.New("application: kind is read-only")
	// ErrShapeMismatch is reported when a payload matched no known response shape.
	ErrShapeMismatch = errors.New("application: unrecognized response shape")
	// ErrBackend wraps every failure returned by the backend collaborator.
	ErrBackend = errors.New("application: backend request failed")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message for a field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver,
// prefixing each field with prefix.
func (v *ValidationError) merge(prefix string, other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(prefix+field, msg)
	}
}

// fields returns a copy of the recorded errors, never nil.
func (v *ValidationError) fields() map[string]string {
	out := make(map[string]string)
	if v == nil {
		return out
	}
	for field, msg := range v.FieldErrors {
		out[field] = msg
	}
	return out
}
