package model

import (
	"errors"
)

var (
	ErrBookNotFound    = errors.New("book not found")
	ErrNotOwner        = errors.New("unauthorized request: only the owner may modify this book")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicateRating = errors.New("book already rated by this user")
	ErrRatingConflict  = errors.New("rating could not be applied: too many concurrent updates, retry later")
	ErrVersionConflict = errors.New("version conflict: book was modified concurrently")
	ErrLookupFailed    = errors.New("book lookup failed")
	ErrPersistFailed   = errors.New("book persistence failed")
	ErrBlobStore       = errors.New("image storage failed")
	ErrImageRequired   = errors.New("image file is required")
	ErrInvalidImage    = errors.New("invalid image")

	errRatingRange = errors.New("rating must be between 1 and 5")
)

// ValidationError carries field level details and matches ErrValidation.
type ValidationError struct {
	Err error
}

func NewValidationError(err error) error {
	return &ValidationError{Err: err}
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error() + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// errorCodes feeds the "code" field of error responses. Order matters:
// the first sentinel matched by errors.Is wins.
var errorCodes = []struct {
	err  error
	code string
}{
	{ErrBookNotFound, "BOOK_NOT_FOUND"},
	{ErrNotOwner, "FORBIDDEN"},
	{ErrDuplicateRating, "DUPLICATE_RATING"},
	{ErrRatingConflict, "RATING_CONFLICT"},
	{ErrImageRequired, "IMAGE_REQUIRED"},
	{ErrInvalidImage, "INVALID_IMAGE"},
	{ErrValidation, "VALIDATION_ERROR"},
	{ErrBlobStore, "IMAGE_STORAGE_ERROR"},
	{ErrLookupFailed, "LOOKUP_FAILED"},
	{ErrPersistFailed, "PERSIST_FAILED"},
}

// ErrorCode returns the stable machine readable code for err.
func ErrorCode(err error) string {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return "INTERNAL_ERROR"
}
