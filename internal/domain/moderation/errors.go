package moderation

import (
	"errors"
	"fmt"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrStoreFailure   = errors.New("store failure")
)

// storeErr classifies an error returned by a repository. Errors that already
// carry a moderation kind pass through; a missing catalog event becomes
// ErrNotFound; anything else is a store failure.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrStoreFailure):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, events.ErrNotFound):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
	}
}
