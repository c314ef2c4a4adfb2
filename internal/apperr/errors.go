// Package apperr defines the error taxonomy shared by the store, the sync
// handlers and the HTTP API.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation is a shorthand constructor for ValidationError.
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent message, payload or session.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NotFound is a shorthand constructor for NotFoundError.
func NotFound(resource string, id interface{}) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// InvalidPayloadError reports a stored payload that cannot be parsed as a
// structured document.
type InvalidPayloadError struct {
	MessageID uint
	Err       error
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload for message %d: %v", e.MessageID, e.Err)
}

func (e *InvalidPayloadError) Unwrap() error { return e.Err }

// UnknownEntityCodeError reports an entity code with no registered handler.
type UnknownEntityCodeError struct {
	Code string
}

func (e *UnknownEntityCodeError) Error() string {
	return fmt.Sprintf("unknown entity code %q", e.Code)
}

// UserError is a single field-level error reported by the platform.
type UserError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UpstreamValidationError reports platform-side field errors for one operation.
// It is not a transport failure: the request reached the platform and was
// rejected.
type UpstreamValidationError struct {
	Operation string
	Errors    []UserError
}

func (e *UpstreamValidationError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, strings.Join(e.Messages(), "; "))
}

// Messages returns the bare platform messages.
func (e *UpstreamValidationError) Messages() []string {
	out := make([]string, 0, len(e.Errors))
	for _, ue := range e.Errors {
		out = append(out, ue.Message)
	}
	return out
}

// Mentions reports whether any message contains all of the given fragments.
func (e *UpstreamValidationError) Mentions(fragments ...string) bool {
	for _, msg := range e.Messages() {
		matched := true
		for _, f := range fragments {
			if !strings.Contains(msg, f) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// TransportError reports a network failure or a non-2xx response from the
// platform.
type TransportError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: platform returned %d: %v", e.Operation, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// PermissionAssignmentError describes a failed ordering-role grant. It is
// logged and absorbed, never returned from a sync.
type PermissionAssignmentError struct {
	CompanyID  string
	LocationID string
	Reason     string
}

func (e *PermissionAssignmentError) Error() string {
	return fmt.Sprintf("assign role for company %s at location %s: %s", e.CompanyID, e.LocationID, e.Reason)
}

// ConflictError reports a message that cannot be dispatched in its current
// state (another sync holds it, or its retry budget is spent).
type ConflictError struct {
	MessageID uint
	Reason    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("message %d: %s", e.MessageID, e.Reason)
}

// Is reports whether err is, or wraps, an error of type T.
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case Is[*ValidationError](err), Is[*InvalidPayloadError](err),
		Is[*UnknownEntityCodeError](err), Is[*UpstreamValidationError](err):
		return http.StatusBadRequest
	case Is[*NotFoundError](err):
		return http.StatusNotFound
	case Is[*ConflictError](err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
