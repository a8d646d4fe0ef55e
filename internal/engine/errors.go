package engine

import (
	"errors"
	"fmt"
)

// Error represents a transaction rejected by the runtime before any
// program ran.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// TxID identifies the rejected transaction, when known.
	TxID string
}

// ErrorCode categorizes runtime rejections.
type ErrorCode string

const (
	// ErrCodeInvalidSignature indicates a signature failed to verify.
	ErrCodeInvalidSignature ErrorCode = "INVALID_SIGNATURE"

	// ErrCodeDuplicateTransaction indicates the transaction ID is already journaled.
	ErrCodeDuplicateTransaction ErrorCode = "DUPLICATE_TRANSACTION"

	// ErrCodeUnknownProgram indicates no program is registered for the ID.
	ErrCodeUnknownProgram ErrorCode = "UNKNOWN_PROGRAM"

	// ErrCodeMalformedTransaction indicates the transaction could not be encoded.
	ErrCodeMalformedTransaction ErrorCode = "MALFORMED_TRANSACTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (tx=%s)", e.Code, e.Message, e.TxID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code as a string. See CodeOf.
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// coded is implemented by every error that maps to a journaled failure code.
type coded interface {
	ErrorCode() string
}

// CodeOf returns the failure code carried by err, if any.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) (string, bool) {
	var c coded
	if errors.As(err, &c) {
		return c.ErrorCode(), true
	}
	return "", false
}

// IsInvalidSignature returns true if err is a signature rejection.
func IsInvalidSignature(err error) bool {
	return hasCode(err, ErrCodeInvalidSignature)
}

// IsDuplicateTransaction returns true if err is a duplicate rejection.
func IsDuplicateTransaction(err error) bool {
	return hasCode(err, ErrCodeDuplicateTransaction)
}

// IsUnknownProgram returns true if err is an unknown program rejection.
func IsUnknownProgram(err error) bool {
	return hasCode(err, ErrCodeUnknownProgram)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func newError(code ErrorCode, txID, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), TxID: txID}
}
