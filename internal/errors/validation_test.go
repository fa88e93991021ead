package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("se_threshold", "must be a positive standard error threshold", -0.2)

	if err.Field != "se_threshold" {
		t.Errorf("Expected field to be 'se_threshold', got '%s'", err.Field)
	}

	if err.Message != "must be a positive standard error threshold" {
		t.Errorf("Unexpected message: '%s'", err.Message)
	}

	if err.Value != -0.2 {
		t.Errorf("Expected value to be -0.2, got '%v'", err.Value)
	}

	expected := "validation error on field 'se_threshold': must be a positive standard error threshold"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("model", "must be a valid IRT model (1PL, 2PL, 3PL, GRM)", "4PL"))
	expected := "validation failed: model must be a valid IRT model (1PL, 2PL, 3PL, GRM)"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("min_items", "must be at least 1", 0))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}

func TestNewValidationErrorWithRule(t *testing.T) {
	err := NewValidationErrorWithRule("locale", "must be a supported locale", "locale_code", "xx")

	if err.Rule != "locale_code" {
		t.Errorf("Expected rule to be 'locale_code', got '%s'", err.Rule)
	}

	if err.Field != "locale" {
		t.Errorf("Expected field to be 'locale', got '%s'", err.Field)
	}
}
