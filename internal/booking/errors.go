package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInterval = errors.New("start time must be before end time")
	ErrTargetNotFound  = errors.New("target item not found")
	ErrOwnerNotFound   = errors.New("owner not found")
	ErrConflict        = errors.New("time slot already reserved")
	ErrUnauthorized    = errors.New("not allowed to modify this resource")
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPersistence     = errors.New("persistence failure")
)

// PersistenceError wraps a storage failure that is not one of the domain
// sentinels. It matches ErrPersistence.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// Persistence classifies err for op: domain sentinels pass through untouched,
// anything else becomes a *PersistenceError.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		ErrInvalidInterval, ErrTargetNotFound, ErrOwnerNotFound,
		ErrConflict, ErrUnauthorized, ErrNotFound, ErrInvalidInput,
		ErrPersistence,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &PersistenceError{Op: op, Err: err}
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNotFound
	OutcomeInvalid
	OutcomeConflict
	OutcomeUnauthorized
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeInvalid:
		return "validation_failed"
	case OutcomeConflict:
		return "conflict"
	case OutcomeUnauthorized:
		return "unauthorized"
	default:
		return "failure"
	}
}

// OutcomeOf maps a service error onto the result the caller reports.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTargetNotFound), errors.Is(err, ErrOwnerNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrInvalidInterval), errors.Is(err, ErrInvalidInput):
		return OutcomeInvalid
	case errors.Is(err, ErrConflict):
		return OutcomeConflict
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	default:
		return OutcomeFailure
	}
}
