package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var rePhone = regexp.MustCompile(`^[0-9()+\-.\s]*[0-9][0-9()+\-.\s]*$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one invalid field by its JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the set of field errors found on a struct.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return strings.Join(parts, "; ")
}

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		// Report JSON names rather than Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		// phone = digits with optional formatting characters
		_ = validate.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return rePhone.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates v against its `validate` tags. It returns nil or Errors.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Errors{{Field: "_", Message: err.Error()}}
	}
	out := make(Errors, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required", "required_if":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "phone":
			out = append(out, FieldError{Field: field, Message: "must contain only digits and formatting"})
		case "numeric":
			out = append(out, FieldError{Field: field, Message: "must contain only digits"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "min", "gte":
			out = append(out, FieldError{Field: field, Message: "must be at least " + e.Param()})
		case "max", "lte":
			out = append(out, FieldError{Field: field, Message: "must be at most " + e.Param()})
		case "oneof":
			out = append(out, FieldError{Field: field, Message: "must be one of " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
