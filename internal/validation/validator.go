// Package validation holds the struct validator shared by config, rule and mapping loaders.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var instance = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Struct checks s against its validate tags. Field names in the returned
// errors are the yaml keys users write, not the Go field names.
func Struct(s any) error {
	return instance.Struct(s)
}

// Failures unwraps the per-field failures of an error returned by Struct.
// It reports false for any other error.
func Failures(err error) (validator.ValidationErrors, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	return verrs, true
}
