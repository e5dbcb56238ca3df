package service

import (
	"errors"
	"fmt"
)

// ValidationError rejects session input before anything is persisted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ErrNoMatch is soft: the notification is acknowledged and logged.
var ErrNoMatch = errors.New("no donation matches notification")

// SessionError is shown to the payer. It carries the merchant order id for
// support lookups and never the provider's answer.
type SessionError struct {
	MerchantOrderID string
	Err             error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("payment session could not be created, reference %s", e.MerchantOrderID)
}

func (e *SessionError) Unwrap() error { return e.Err }

var (
	ErrNotRefundable    = errors.New("donation is not paid")
	ErrRefundTooLarge   = errors.New("refund exceeds refundable amount")
	ErrOrderIDExhausted = errors.New("could not allocate a unique merchant order id")
)
