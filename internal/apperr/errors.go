package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so that clones and wrapped copies of a sentinel
// still satisfy errors.Is(err, ErrSlotNotFree).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

var (
	ErrInvalidTemplate          = New("INVALID_TEMPLATE", http.StatusBadRequest, "invalid availability template")
	ErrSlotNotFree              = New("SLOT_NOT_FREE", http.StatusConflict, "slot is not free")
	ErrInsufficientCredit       = New("INSUFFICIENT_CREDIT", http.StatusUnprocessableEntity, "insufficient class credit")
	ErrOverRelease              = New("OVER_RELEASE", http.StatusInternalServerError, "credit release exceeds purchased classes")
	ErrNoticeWindowExpired      = New("NOTICE_WINDOW_EXPIRED", http.StatusUnprocessableEntity, "notice window expired: the class starts in less than the required notice; cancelling now forfeits the class credit")
	ErrOverlappingBatchConflict = New("OVERLAPPING_BATCH_CONFLICT", http.StatusConflict, "one or more slots in the batch are not available")

	ErrNotFound       = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrValidation     = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrSlotInPast     = New("SLOT_IN_PAST", http.StatusUnprocessableEntity, "slot has already started")
	ErrCourseInactive = New("COURSE_INACTIVE", http.StatusUnprocessableEntity, "student course is inactive")
	ErrClassNotActive = New("CLASS_NOT_ACTIVE", http.StatusConflict, "class is not booked")
	ErrInternal       = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	// ErrCacheMiss never reaches clients; the slot cache treats it as a miss.
	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of the error carrying structured details for the caller.
func WithDetails(err *Error, message string, details any) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Details = details
	}
	return clone
}
