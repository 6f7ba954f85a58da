package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrForbidden              = errors.New("forbidden")
	ErrPaymentIncomplete      = errors.New("payment incomplete")
	ErrRefundExceedsAvailable = errors.New("refund exceeds available amount")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrGateway                = errors.New("payment gateway error")
	ErrGatewayTimeout         = errors.New("payment gateway timeout")
	ErrDuplicatePayment       = fmt.Errorf("%w: booking already has a completed payment", ErrConflict)
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

type DuplicatePaymentError struct {
	BookingID int64
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("booking %d already has a completed payment", e.BookingID)
}

func (e *DuplicatePaymentError) Unwrap() error { return ErrDuplicatePayment }

type AuthorizationError struct {
	Action string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("not allowed to %s", e.Action)
}

func (e *AuthorizationError) Unwrap() error { return ErrForbidden }

type PaymentIncompleteError struct {
	Required  decimal.Decimal
	Paid      decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("payment incomplete: required %s, paid %s, shortfall %s",
		e.Required.StringFixed(2), e.Paid.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *PaymentIncompleteError) Unwrap() error { return ErrPaymentIncomplete }

type RefundExceedsAvailableError struct {
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *RefundExceedsAvailableError) Error() string {
	return fmt.Sprintf("refund of %s exceeds available %s",
		e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

func (e *RefundExceedsAvailableError) Unwrap() error { return ErrRefundExceedsAvailable }

type InvalidTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change booking status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error { return []error{ErrGateway, e.Err} }

type GatewayTimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *GatewayTimeoutError) Error() string {
	return fmt.Sprintf("gateway %s timed out after %s", e.Op, e.Timeout)
}

func (e *GatewayTimeoutError) Unwrap() error { return ErrGatewayTimeout }
