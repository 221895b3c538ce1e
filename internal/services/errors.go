package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("link not found")
	ErrGone             = errors.New("this link has self-destructed")
	ErrAliasTaken       = errors.New("this alias is already taken")
	ErrWrongSecret      = errors.New("incorrect password")
	ErrDomainMismatch   = errors.New("identity is not part of the required organization")
	ErrInvalidIdentity  = errors.New("identity could not be verified")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("not authorized for this link")
	ErrStoreUnavailable = errors.New("link store unavailable")
	ErrSlugSpace        = errors.New("could not allocate a free slug")
)

// DomainMismatchError names the caller's own email, never the required domain.
type DomainMismatchError struct {
	Email string
}

func (e *DomainMismatchError) Error() string {
	if e.Email == "" {
		return "your account is not permitted to open this link"
	}
	return fmt.Sprintf("%s is not permitted to open this link", e.Email)
}

func (e *DomainMismatchError) Unwrap() error {
	return ErrDomainMismatch
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
