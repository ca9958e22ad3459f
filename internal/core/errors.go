package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrWeakPassword       = errors.New("weak password")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStore              = errors.New("store failure")
)

// InvalidInputError carries the user-facing reason for a rejected field.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// InvalidInput builds an InvalidInputError from a format string.
func InvalidInput(format string, args ...any) error {
	return &InvalidInputError{Reason: fmt.Sprintf(format, args...)}
}

// WeakPasswordError names the first password rule that failed.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string { return e.Reason }

func (e *WeakPasswordError) Is(target error) bool { return target == ErrWeakPassword }

// StoreError hides driver detail from callers. Err is kept for logging via Unwrap.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s failed: storage unavailable", e.Op)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStore }

// WrapStore returns nil for a nil err, otherwise a StoreError for op.
// Errors that already are StoreErrors keep their original op.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
