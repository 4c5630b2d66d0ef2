package engine

import (
	"errors"
	"fmt"
)

// Business outcomes. These mean the operation ran to completion and the
// workplace rules rejected it; retrying without changing the request will
// fail the same way.
var (
	// ErrResourceNotFound covers both a genuinely missing team or vacancy
	// and a caller who is not on the roster. Non-members cannot probe
	// which team ids exist.
	ErrResourceNotFound = errors.New("resource not found")

	ErrNoPermission = errors.New("no permission")

	// ErrUserNotFound is returned when the subject of an operation is not
	// registered, is marked for deletion, or is not on the team roster.
	ErrUserNotFound = errors.New("user not found")

	ErrUserAlreadyJoined         = errors.New("user already joined")
	ErrUsernameTaken             = errors.New("username already taken")
	ErrJoinLimitExceeded         = errors.New("team join limit exceeded")
	ErrTeamSizeLimitExceeded     = errors.New("team size limit exceeded")
	ErrVacancyCountLimitExceeded = errors.New("vacancy count limit exceeded")
)

// ServerError wraps an infrastructure failure from the store layer. The
// operation may or may not have partially applied; callers can retry.
type ServerError struct {
	Op  string
	Err error
}

func (e ServerError) Error() string { return fmt.Sprintf("%s: storage failure: %v", e.Op, e.Err) }
func (e ServerError) Unwrap() error { return e.Err }

func serverError(op string, err error) error {
	return ServerError{Op: op, Err: err}
}

// ContractError marks a call that violates the engine API contract, such as
// an empty caller identity. It is a fault in the calling layer, not a
// business outcome.
type ContractError struct {
	Reason string
}

func (e ContractError) Error() string { return "engine contract violation: " + e.Reason }

func contractError(format string, args ...any) error {
	return ContractError{Reason: fmt.Sprintf(format, args...)}
}
