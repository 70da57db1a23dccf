package serverutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// rejects whitespace-only input such as a blank chat message
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidateRequest checks the validate tags of req; the error handler turns failures into a 400.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

func describe(errs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "notblank":
			out[field] = "is required"
		case "email":
			out[field] = "must be a valid email address"
		case "min":
			out[field] = fmt.Sprintf("must be at least %s characters", fe.Param())
		case "max":
			out[field] = fmt.Sprintf("must be at most %s characters", fe.Param())
		case "eqfield":
			out[field] = fmt.Sprintf("must match %s", strings.ToLower(fe.Param()))
		default:
			out[field] = "is invalid"
		}
	}
	return out
}

// FieldErrors flattens validation failures for inline form errors; other errors give nil.
func FieldErrors(err error) map[string]string {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		return describe(verrs)
	}
	return nil
}
