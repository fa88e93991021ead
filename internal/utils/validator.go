package utils

import (
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/irt-tools/cat-service/internal/config"
	apperrors "github.com/irt-tools/cat-service/internal/errors"
	"github.com/irt-tools/cat-service/internal/irt"
)

// Validator combines struct-tag validation with the custom domain rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	validate := validator.New()
	RegisterCustomValidators(validate)
	return &Validator{validate: validate}
}

// Validate runs struct-tag validation and translates failures into the
// shared ValidationErrors type.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

// ValidateStudyConfig runs struct validation plus the cross-field rules that
// must hold before any session may start.
func (v *Validator) ValidateStudyConfig(cfg *config.StudyConfig) error {
	if err := v.Validate(cfg); err != nil {
		return err
	}
	return cfg.CheckRules()
}

// Custom validation functions

func ValidateIRTModel(fl validator.FieldLevel) bool {
	return irt.Model(fl.Field().String()).Valid()
}

func ValidateSelectionCriterion(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case config.SelectionMaxInfo, config.SelectionRandom:
		return true
	}
	return false
}

func ValidateDisplayTheme(fl validator.FieldLevel) bool {
	return slices.Contains(config.SupportedThemes, fl.Field().String())
}

func ValidateLocaleCode(fl validator.FieldLevel) bool {
	return slices.Contains(config.SupportedLocales, fl.Field().String())
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("irt_model", ValidateIRTModel)
	validate.RegisterValidation("selection_criterion", ValidateSelectionCriterion)
	validate.RegisterValidation("display_theme", ValidateDisplayTheme)
	validate.RegisterValidation("locale_code", ValidateLocaleCode)

	// Register custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
