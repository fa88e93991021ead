package services

import (
	"errors"
	"fmt"

	apperrors "github.com/irt-tools/cat-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Bank specific errors
	ErrBankNotFound    = errors.New("item bank not found")
	ErrBankEmpty       = errors.New("item bank has no items")
	ErrBankInvalid     = errors.New("item bank has invalid items")
	ErrBankInUse       = errors.New("item bank cannot be deleted - in use by studies")
	ErrDuplicateItemID = errors.New("duplicate item id within bank")

	// Study specific errors
	ErrStudyNotFound   = errors.New("study not found")
	ErrStudyNotActive  = errors.New("study is not active")
	ErrStudyConfigBad  = errors.New("study configuration invalid")
	ErrStudyModelMatch = errors.New("study model does not match item bank model")

	// Session specific errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionNotActive    = errors.New("session is not active")
	ErrSessionTerminal     = errors.New("session has already terminated")
	ErrSessionNotTerminal  = errors.New("session has not finished yet")
	ErrSessionItemMismatch = errors.New("answer does not match the presented item")

	// Simulation specific errors
	ErrSimulationCancelled = errors.New("simulation batch cancelled")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// BankValidationError carries the per-item issues found during bank
// validation. All issues are reported together so an upload can be fixed in
// one pass.
type BankValidationError struct {
	BankName string            `json:"bank_name"`
	Issues   []ItemIssueDetail `json:"issues"`
}

type ItemIssueDetail struct {
	ExternalID string `json:"external_id"`
	Position   int    `json:"position"`
	Message    string `json:"message"`
}

func (e *BankValidationError) Error() string {
	return fmt.Sprintf("item bank %q has %d invalid items", e.BankName, len(e.Issues))
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBankNotFound) ||
		errors.Is(err, ErrStudyNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var bve *BankValidationError
	return errors.As(err, &bve)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrBankInUse) ||
		errors.Is(err, ErrSessionTerminal) ||
		errors.Is(err, ErrSessionNotTerminal)
}
