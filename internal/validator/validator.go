// Package validator provides struct-tag validation shared by configuration
// loading and the producer manifest, including a custom tag for VIS signal
// paths.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("vispath", validateVISPath)
}

// ValidateStruct validates s against its `validate` struct tags.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// ValidateRequest validates s and returns a field-name-to-message map, or
// nil if s passes validation.
func ValidateRequest(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errs := make(map[string]string)
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			field := strings.ToLower(e.Field())
			errs[field] = formatValidationError(e)
		}
	}
	return errs
}

// formatValidationError converts a validator field error into a
// human-readable message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "vispath":
		return "must be a dotted alphanumeric signal path, e.g. Vehicle.Speed"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// validateVISPath checks that a field holds a well-formed VIS signal path:
// one or more dot-separated segments, each starting with a letter and
// containing only letters, digits, and underscores.
func validateVISPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	for _, segment := range strings.Split(path, ".") {
		if !validSegment(segment) {
			return false
		}
	}
	return true
}

func validSegment(segment string) bool {
	if segment == "" {
		return false
	}
	first := segment[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z')) {
		return false
	}
	for _, char := range segment {
		switch {
		case char >= 'a' && char <= 'z':
		case char >= 'A' && char <= 'Z':
		case char >= '0' && char <= '9':
		case char == '_':
		default:
			return false
		}
	}
	return true
}
