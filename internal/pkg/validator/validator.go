package validator

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Check runs the struct-tag rules and returns a field -> failed-rule map,
// or nil when the value is valid.
func Check(v interface{}) map[string]string {
	return Fields(validate.Struct(v))
}

// Fields extracts the per-field rule failures from a validation or binding
// error. Returns nil for errors that carry no field information.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
