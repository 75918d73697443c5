package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors shared by every feature package. Services wrap them with
// context via fmt.Errorf("%w: ...") and controllers map them to HTTP codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateReferral = errors.New("referral already recorded")
	ErrInvalidTransition = errors.New("invalid referral status transition")
	ErrScopeMismatch     = errors.New("entity does not belong to waitlist")
	ErrAlreadyFinalized  = errors.New("campaign already has a final snapshot")
)

// NotFound wraps ErrNotFound for a named entity.
func NotFound(entity string, id interface{}) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// HTTPStatus maps an error to the response code controllers should use.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDuplicateReferral),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyFinalized):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrScopeMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// IsDomain reports whether err is one of the known domain errors.
func IsDomain(err error) bool {
	return HTTPStatus(err) != http.StatusInternalServerError
}
