// Package apperr defines the error taxonomy shared by every service.
//
// Each sentinel below is an error kind. Concrete errors wrap a kind with %w so
// callers can branch on either the kind (errors.Is(err, ErrConflict)) or the
// concrete cause (errors.Is(err, ErrAlreadyFriends)).
package apperr

import (
	"errors"
	"fmt"
)

// Kinds
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// Match ledger
var (
	ErrInvalidDartValue   = fmt.Errorf("%w: dart value must be between 0 and 60", ErrInvalidInput)
	ErrInvalidStartScore  = fmt.Errorf("%w: starting score out of range", ErrInvalidInput)
	ErrTurnFull           = fmt.Errorf("%w: turn already has 3 darts", ErrConflict)
	ErrMatchNotInProgress = fmt.Errorf("%w: match is not in progress", ErrConflict)
	ErrNotYourMatch       = fmt.Errorf("%w: match belongs to another player", ErrForbidden)
	ErrSelfMatch          = fmt.Errorf("%w: cannot play against yourself", ErrInvalidInput)
)

// Rating engine
var (
	ErrNoParticipants = fmt.Errorf("%w: settlement needs at least one registered player", ErrInvalidInput)
)

// Social graph
var (
	ErrSelfRequest      = fmt.Errorf("%w: cannot send a friend request to yourself", ErrInvalidInput)
	ErrAlreadyFriends   = fmt.Errorf("%w: users are already friends", ErrConflict)
	ErrDuplicatePending = fmt.Errorf("%w: a pending request already exists between these users", ErrConflict)
	ErrNotPending       = fmt.Errorf("%w: request is no longer pending", ErrConflict)
	ErrNotFriends       = fmt.Errorf("%w: users are not friends", ErrNotFound)
)

// Store marks err as a transient durable-store failure. The result matches both
// ErrStoreUnavailable and the original driver error.
func Store(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Invalid builds an ErrInvalidInput with a message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
