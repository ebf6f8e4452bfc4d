// Package validation provides a shared validator instance.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var instance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Cannot error: tag is non-empty and function is non-nil.
	_ = v.RegisterValidation("password", strongPassword)
	return v
}

// customHints maps validator tags to a hint appended to the default error.
var customHints = map[string]func(fe validator.FieldError) string{
	"password": func(validator.FieldError) string {
		return "password needs upper and lower case letters and a digit"
	},
	"oneof": func(fe validator.FieldError) string {
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	},
}

// Struct validates a struct and returns the error message and false if invalid.
func Struct(v any) (string, bool) {
	if err := instance.Struct(v); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return err.Error(), false
		}
		return formatErrors(validationErrors), false
	}
	return "", true
}

func formatErrors(errs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msg := fe.Error()
		if fn, ok := customHints[fe.Tag()]; ok {
			msg = fmt.Sprintf("%s: %s", msg, fn(fe))
		}
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}

// strongPassword requires at least one upper-case letter, one lower-case
// letter and one digit. Length is checked by the min tag.
func strongPassword(fl validator.FieldLevel) bool {
	var upper, lower, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Instance returns the shared validator for registering custom validators.
func Instance() *validator.Validate {
	return instance
}
