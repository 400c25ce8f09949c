package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError names one failing input field using its JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field failure of one request. It unwraps to
// ErrValidation so callers can keep using errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, field.Field+" "+field.Message)
	}
	return strings.Join(parts, "; ") + ": " + ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no field failed.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// FieldErrors extracts the field list from an error chain.
func FieldErrors(err error) []FieldError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Fields
	}
	return nil
}

// NewFieldError is shorthand for a single-field validation failure.
func NewFieldError(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func schemaValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
		_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
			_, err := ValidateDate(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			_, err := ValidateTimeOfDay(fl.Field().String())
			return err == nil
		})
		validate = v
	})
	return validate
}

// Validate runs the struct-tag schema of value and reports every failing
// field. Non-validation failures (a nil or non-struct value) are returned
// as-is.
func Validate(value any) error {
	err := schemaValidator().Struct(value)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Join(ErrValidation, err)
	}

	result := &ValidationError{}
	for _, fieldErr := range fieldErrs {
		result.Add(fieldPath(fieldErr.Namespace()), fieldMessage(fieldErr))
	}
	return result
}

func fieldPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}

func fieldMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fieldErr.Param()
	case "max":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fieldErr.Param())
		}
		return "must be at most " + fieldErr.Param()
	case "min":
		if fieldErr.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fieldErr.Param())
		}
		return "must contain at least " + fieldErr.Param()
	case "gt":
		return "must be greater than " + fieldErr.Param()
	case "gte":
		return "must be greater than or equal to " + fieldErr.Param()
	case "lte":
		return "must be less than or equal to " + fieldErr.Param()
	case "numeric":
		return "must contain digits only"
	case "ymd":
		return "must be a date formatted YYYY-MM-DD"
	case "hhmm":
		return "must be a time of day formatted HH:MM"
	case "iso4217":
		return "must be an ISO 4217 currency code"
	case "timezone":
		return "must be an IANA timezone name"
	default:
		return "failed " + fieldErr.Tag() + " check"
	}
}

func ValidateDate(value string) (string, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return "", err
	}

	return parsed.Format(DateLayout), nil
}

func ValidateTimeOfDay(value string) (string, error) {
	parsed, err := time.Parse(TimeOfDayLayout, value)
	if err != nil {
		return "", err
	}

	return parsed.Format(TimeOfDayLayout), nil
}

// MinutesOfDay converts a validated HH:MM value to minutes after midnight.
func MinutesOfDay(value string) (int, error) {
	parsed, err := time.Parse(TimeOfDayLayout, value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
