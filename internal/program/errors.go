package program

import (
	"errors"
	"fmt"
)

// Code identifies a program failure. Codes are journaled with failed
// transactions and are the only detail the runtime logs.
type Code string

const (
	CodeAlreadyInitialized      Code = "ALREADY_INITIALIZED"
	CodeNotInitialized          Code = "NOT_INITIALIZED"
	CodeNameTooLong             Code = "NAME_TOO_LONG"
	CodeDescriptionTooLong      Code = "DESCRIPTION_TOO_LONG"
	CodeRarityTooLong           Code = "RARITY_TOO_LONG"
	CodeInvalidUnlockPercentage Code = "INVALID_UNLOCK_PERCENTAGE"
	CodeAchievementIDTooLong    Code = "ACHIEVEMENT_ID_TOO_LONG"
	CodeRecordAlreadyExists     Code = "RECORD_ALREADY_EXISTS"
	CodeRecordNotFound          Code = "RECORD_NOT_FOUND"
	CodeNotOwner                Code = "NOT_OWNER"
	CodeMissingSignature        Code = "MISSING_SIGNATURE"
	CodeUnauthorizedMinter      Code = "UNAUTHORIZED_MINTER"
	CodeAddressMismatch         Code = "ADDRESS_MISMATCH"
	CodeProofMismatch           Code = "PROOF_MISMATCH"
	CodeInvalidRecordTag        Code = "INVALID_RECORD_TAG"
	CodeInvalidRecordData       Code = "INVALID_RECORD_DATA"
	CodeWrongProgram            Code = "WRONG_PROGRAM"
	CodeInsufficientFunds       Code = "INSUFFICIENT_FUNDS"
	CodeInvalidInstruction      Code = "INVALID_INSTRUCTION"
)

// Category groups codes by cause.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryAuthorization Category = "authorization"
	CategoryState         Category = "state"
	CategoryDerivation    Category = "derivation"
)

var categories = map[Code]Category{
	CodeNameTooLong:             CategoryValidation,
	CodeDescriptionTooLong:      CategoryValidation,
	CodeRarityTooLong:           CategoryValidation,
	CodeInvalidUnlockPercentage: CategoryValidation,
	CodeAchievementIDTooLong:    CategoryValidation,
	CodeInvalidInstruction:      CategoryValidation,
	CodeNotOwner:                CategoryAuthorization,
	CodeMissingSignature:        CategoryAuthorization,
	CodeUnauthorizedMinter:      CategoryAuthorization,
	CodeAlreadyInitialized:      CategoryState,
	CodeNotInitialized:          CategoryState,
	CodeRecordAlreadyExists:     CategoryState,
	CodeRecordNotFound:          CategoryState,
	CodeInsufficientFunds:       CategoryState,
	CodeAddressMismatch:         CategoryDerivation,
	CodeProofMismatch:           CategoryDerivation,
	CodeInvalidRecordTag:        CategoryDerivation,
	CodeInvalidRecordData:       CategoryDerivation,
	CodeWrongProgram:            CategoryDerivation,
}

// Error is a program failure.
//
// Errors compare by code, so a wrapped error with a detailed message still
// matches the package sentinel:
//
//	errors.Is(err, program.ErrNotOwner)
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the journaled failure code.
func (e *Error) ErrorCode() string {
	return string(e.Code)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Category returns the cause group of the error.
func (e *Error) Category() Category {
	return categories[e.Code]
}

var (
	ErrAlreadyInitialized      = &Error{Code: CodeAlreadyInitialized, Message: "authority already initialized"}
	ErrNotInitialized          = &Error{Code: CodeNotInitialized, Message: "authority not initialized"}
	ErrNameTooLong             = &Error{Code: CodeNameTooLong, Message: "name is too long, must be <= 32 bytes"}
	ErrDescriptionTooLong      = &Error{Code: CodeDescriptionTooLong, Message: "description is too long, must be <= 200 bytes"}
	ErrRarityTooLong           = &Error{Code: CodeRarityTooLong, Message: "rarity is too long, must be <= 20 bytes"}
	ErrInvalidUnlockPercentage = &Error{Code: CodeInvalidUnlockPercentage, Message: "unlock percentage must be between 0 and 100"}
	ErrAchievementIDTooLong    = &Error{Code: CodeAchievementIDTooLong, Message: "achievement id is too long, must be <= 50 bytes"}
	ErrRecordAlreadyExists     = &Error{Code: CodeRecordAlreadyExists, Message: "badge record already exists"}
	ErrRecordNotFound          = &Error{Code: CodeRecordNotFound, Message: "badge record not found"}
	ErrNotOwner                = &Error{Code: CodeNotOwner, Message: "not the owner of this badge"}
	ErrMissingSignature        = &Error{Code: CodeMissingSignature, Message: "required signature missing"}
	ErrUnauthorizedMinter      = &Error{Code: CodeUnauthorizedMinter, Message: "payer is not the administrator"}
	ErrAddressMismatch         = &Error{Code: CodeAddressMismatch, Message: "account does not match derived address"}
	ErrProofMismatch           = &Error{Code: CodeProofMismatch, Message: "stored derivation proof does not match"}
	ErrInvalidRecordTag        = &Error{Code: CodeInvalidRecordTag, Message: "account data has the wrong type tag"}
	ErrInvalidRecordData       = &Error{Code: CodeInvalidRecordData, Message: "account data cannot be decoded"}
	ErrWrongProgram            = &Error{Code: CodeWrongProgram, Message: "account is not owned by this program"}
	ErrInsufficientFunds       = &Error{Code: CodeInsufficientFunds, Message: "payer cannot cover storage cost"}
	ErrInvalidInstruction      = &Error{Code: CodeInvalidInstruction, Message: "malformed instruction"}
)

// failf returns a copy of base with a detailed message.
func failf(base *Error, format string, args ...any) *Error {
	return &Error{Code: base.Code, Message: fmt.Sprintf(format, args...)}
}
