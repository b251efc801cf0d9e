// Package validate wraps go-playground/validator for request payloads.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifier(fl.Field().String())
	})
}

func identifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Struct validates the struct fields of value.
func Struct[T any](value T) (T, error) {
	if err := validate.Struct(value); err != nil {
		return value, ValidationErrorToString(value, err)
	}
	return value, nil
}

// Value validates a single value against a validator tag.
func Value(value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return ValidationErrorToString(value, err)
	}
	return nil
}

func ValidationErrorToString(input any, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), ruleText(fe)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
