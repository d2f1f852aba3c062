package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRow marks a backend row or feed payload that does not match its schema.
var ErrInvalidRow = errors.New("invalid row")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// text: a string value that is not only whitespace once present.
	_ = v.RegisterValidation("text", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		return f.Kind() == reflect.String && (f.Len() == 0 || strings.TrimSpace(f.String()) != "")
	})
	// flag: a real bool, not a string spelling one.
	_ = v.RegisterValidation("flag", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool
	})
	// timestamp: a time.Time or an RFC 3339 string.
	_ = v.RegisterValidation("timestamp", func(fl validator.FieldLevel) bool {
		switch f := fl.Field().Interface().(type) {
		case time.Time:
			return true
		case string:
			_, err := time.Parse(time.RFC3339, f)
			return err == nil
		}
		return false
	})
	return v
}

// Validate checks a row against its schema before it is admitted into a cache.
func Validate(row any) error {
	if err := validate.Struct(row); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}
	return nil
}

// ValidateAll validates every row of a slice.
func ValidateAll[T any](rows []T) error {
	for i := range rows {
		if err := Validate(rows[i]); err != nil {
			return err
		}
	}
	return nil
}
