package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/class_scheduler/internal/model"
	"github.com/Freeeeeet/class_scheduler/internal/repository"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalid            = errors.New("invalid input")
	ErrPersistence        = errors.New("persistence failure")

	errTeacherOnly = fmt.Errorf("only a teacher can do this: %w", ErrForbidden)
)

// ErrorKind is the machine-readable failure reason sent back to clients.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindConflict        ErrorKind = "conflict"
	KindInvalid         ErrorKind = "invalid"
	KindPersistence     ErrorKind = "persistence"
)

// KindOf classifies err. Anything unrecognised is a persistence failure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrInvalidCredentials):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, repository.ErrStale):
		return KindConflict
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	default:
		return KindPersistence
	}
}

// ErrorMessage returns a client-facing message for err. Persistence details stay in the logs.
func ErrorMessage(err error) string {
	switch KindOf(err) {
	case KindUnauthenticated:
		return "authentication required"
	case KindForbidden, KindNotFound, KindConflict, KindInvalid:
		return err.Error()
	default:
		return "storage unavailable, try again"
	}
}

// storeErr wraps a repository error for op. Failed guards become conflicts.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrStale) {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

func requireTeacher(actor model.Actor) error {
	if !actor.IsTeacher() {
		return errTeacherOnly
	}
	return nil
}
