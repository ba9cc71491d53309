package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind - класс ошибки, который видит вызывающая сторона
type Kind int

const (
	KindProvider Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
)

var (
	// ErrValidation is returned when a required argument is empty or malformed.
	ErrValidation = errors.New("validation failure")

	// ErrNotFound is returned when the addressed document or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when there is no valid session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the session may not touch the document.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when a unique constraint is violated.
	ErrConflict = errors.New("conflict")

	// ErrProvider is returned for storage, network and quota failures.
	ErrProvider = errors.New("provider failure")
)

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindUnauthorized:
		return ErrUnauthorized
	case KindForbidden:
		return ErrForbidden
	case KindConflict:
		return ErrConflict
	default:
		return ErrProvider
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "provider"
	}
}

// Error - ошибка операции репозитория с классом
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is позволяет писать errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf классифицирует любую ошибку; неизвестные считаются ошибками провайдера
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindConflict
	}
	return KindProvider
}

func newError(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func validationError(op, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// storeError оборачивает ошибку gorm/хранилища, сохраняя класс, если он уже есть
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Op: op, Kind: KindProvider, Err: err}
	}
	return &Error{Op: op, Kind: KindOf(err), Err: err}
}
