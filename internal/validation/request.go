package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apierrors "timesheets/internal/errors"
)

// RequestValidator checks decoded request structs against their validate
// tags. Field names in messages follow the json tags.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates a validator with the custom tags registered.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("safefile", isSafeFilename)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

// Struct validates s. Failures come back as a 400 APIError listing every
// rejected field.
func (rv *RequestValidator) Struct(s interface{}) error {
	err := rv.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apierrors.InvalidRequestWithError(err)
	}

	out := make([]apierrors.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, apierrors.ValidationError{
			Field:   fe.Field(),
			Message: formatFieldError(fe),
		})
	}
	return apierrors.NewValidationErrors(out)
}

// Var validates a single value against tag.
func (rv *RequestValidator) Var(field, value, tag string) error {
	if err := rv.validate.Var(value, tag); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return apierrors.ErrValidation(field, strings.Replace(formatFieldError(fieldErrs[0]), "{field}", field, 1))
		}
		return apierrors.ErrValidation(field, err.Error())
	}
	return nil
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	if field == "" {
		field = "{field}"
	}

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "safefile":
		return fmt.Sprintf("%s must be a plain file name", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// isSafeFilename accepts a bare file name with no path components.
func isSafeFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" || len(name) > 255 {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return name == SecureFilename(name)
}
