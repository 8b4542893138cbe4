package handlers

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"reward-engine/apierr"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError maps validator field errors onto the error taxonomy.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apierr.Validation("invalid input", nil)
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = describe(fe)
	}
	return apierr.Validation("invalid input", fields)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	}
	return "failed " + fe.Tag()
}

// bindJSON parses and validates the request body into out.
func bindJSON(c *fiber.Ctx, v *validator.Validate, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apierr.Validation("malformed JSON body", nil)
	}
	if err := v.Struct(out); err != nil {
		return validationError(err)
	}
	return nil
}
