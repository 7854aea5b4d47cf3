package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Remote playlist errors
	ErrRemoteNotFound     = errors.New("remote playlist or track not found")
	ErrRevisionConflict   = errors.New("remote revision conflict")
	ErrConflictExhausted  = errors.New("revision conflict retries exhausted")
	ErrNoEffect           = errors.New("remote accepted the write but state did not change")
	ErrUnavailable        = errors.New("remote service unavailable")
	ErrRateLimited        = errors.New("too many mutations, slow down")
	ErrCredentialRejected = errors.New("music service rejected the credential")

	// Entitlement and payment errors, matched by the typed errors below
	ErrAuthorizationDenied     = errors.New("authorization denied")
	ErrQuotaExceeded           = errors.New("playlist quota exceeded")
	ErrPaymentAmountMismatch   = errors.New("payment amount mismatch")
	ErrUnknownOrReplayedIntent = errors.New("unknown or replayed payment intent")
)

// Denial reasons carried by AuthorizationDeniedError.
const (
	ReasonInsufficientRole  = "insufficient_role"
	ReasonNotAMember        = "not_a_member"
	ReasonInvitationExpired = "invitation_expired"
)

type AuthorizationDeniedError struct {
	Reason string
}

func (e *AuthorizationDeniedError) Error() string {
	return fmt.Sprintf("authorization denied: %s", e.Reason)
}

func (e *AuthorizationDeniedError) Is(target error) bool { return target == ErrAuthorizationDenied }

func Denied(reason string) error { return &AuthorizationDeniedError{Reason: reason} }

// QuotaExceededError reports the owned count against the governing ceiling.
// Limit is -1 only if it was unlimited, which never denies.
type QuotaExceededError struct {
	Owned int
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("playlist quota exceeded: owns %d of %d", e.Owned, e.Limit)
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

type PaymentAmountMismatchError struct {
	Expected int64
	Paid     int64
}

func (e *PaymentAmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount mismatch: expected %d stars, got %d", e.Expected, e.Paid)
}

func (e *PaymentAmountMismatchError) Is(target error) bool { return target == ErrPaymentAmountMismatch }

const (
	ReasonUnknownIntent    = "unknown_intent"
	ReasonAlreadyProcessed = "already_processed"
)

type PaymentIntentError struct {
	Reason string
}

func (e *PaymentIntentError) Error() string {
	return fmt.Sprintf("payment intent rejected: %s", e.Reason)
}

func (e *PaymentIntentError) Is(target error) bool { return target == ErrUnknownOrReplayedIntent }

// Transient reports whether the caller may resubmit the same request.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrConflictExhausted) ||
		errors.Is(err, ErrNoEffect)
}
