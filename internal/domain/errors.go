package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
	KindDuplicateEntity     ErrorKind = "DUPLICATE_ENTITY"
	KindAuthentication      ErrorKind = "AUTHENTICATION_ERROR"
)

// DomainError carries a kind so callers can branch with errors.Is against the
// kind sentinels below regardless of the message.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	if t == e {
		return true
	}
	// kind sentinels match every error of the same kind
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation          = &DomainError{Kind: KindValidation}
	ErrNotFound            = &DomainError{Kind: KindNotFound}
	ErrUpstreamUnavailable = &DomainError{Kind: KindUpstreamUnavailable}
	ErrDuplicateEntity     = &DomainError{Kind: KindDuplicateEntity}
	ErrAuthentication      = &DomainError{Kind: KindAuthentication}
)

var (
	ErrOrderNotFound        = &DomainError{Kind: KindNotFound, Message: "order not found"}
	ErrProductNotFound      = &DomainError{Kind: KindNotFound, Message: "product not found"}
	ErrUserNotFound         = &DomainError{Kind: KindNotFound, Message: "user not found"}
	ErrNotificationNotFound = &DomainError{Kind: KindNotFound, Message: "notification not found"}
	ErrEmailAlreadyExists   = &DomainError{Kind: KindDuplicateEntity, Message: "user with this email already exists"}
	ErrInvalidCredentials   = &DomainError{Kind: KindAuthentication, Message: "invalid email or password"}
	ErrIdempotencyKeyReused = &DomainError{Kind: KindDuplicateEntity, Message: "idempotency key was already used for a different order"}
)

func NewValidationError(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NewUpstreamError(message string, err error) error {
	return &DomainError{Kind: KindUpstreamUnavailable, Message: message, Err: err}
}

// KindOf reports the kind of the first DomainError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

// OrderCreationError aborts an order creation because the price of ProductID
// could not be obtained. Cause is ErrProductNotFound or an upstream error.
type OrderCreationError struct {
	ProductID int64
	Cause     error
}

func (e *OrderCreationError) Error() string {
	return fmt.Sprintf("order creation failed for product %d: %v", e.ProductID, e.Cause)
}

func (e *OrderCreationError) Unwrap() error {
	return e.Cause
}
