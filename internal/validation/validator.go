package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	ierr "github.com/kami-operation/kamiops/internal/errors"
)

// CodePattern is the format of category, document type and role codes
var CodePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// PermissionCodePattern is the "<module>.<action>" format of permission codes
var PermissionCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// Validator wraps go-playground/validator with the custom tags used by request DTOs.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the "code", "permcode" and "jsonstr" tags registered.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("code", func(fl validator.FieldLevel) bool {
		return CodePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("permcode", func(fl validator.FieldLevel) bool {
		return PermissionCodePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("jsonstr", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		return s == "" || json.Valid([]byte(s))
	})
	return &Validator{v: v}
}

// Struct validates a DTO and returns an ierr.ErrValidation error carrying per-field messages.
func (val *Validator) Struct(i any) error {
	err := val.v.Struct(i)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation)
	}

	details := make(map[string]string, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msg := fieldError(fe)
		details[fe.Field()] = msg
		msgs = append(msgs, msg)
	}
	return ierr.NewError("request validation failed").
		WithHint(strings.Join(msgs, "; ")).
		WithReportableDetails(details).
		Mark(ierr.ErrValidation)
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "code":
		return field + " must contain only uppercase letters, digits and underscores, starting with a letter"
	case "permcode":
		return field + " must look like module.action"
	case "jsonstr":
		return field + " must be valid JSON"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "uuid", "uuid4":
		return field + " must be a valid id"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
