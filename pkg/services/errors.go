package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStore           = errors.New("store failure")
)

// Error carries a message that is safe to show the caller.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newErr(kind error, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// PublicMessage returns the text to report for err. Store and unknown errors
// are not exposed.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != ErrStore {
		return e.Msg
	}
	if errors.Is(err, ErrStore) {
		return "temporary storage error, please retry"
	}
	return "internal server error"
}

func storeErr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return newErr(ErrNotFound, op+": not found")
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStore, err)
}
