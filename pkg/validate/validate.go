package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/madaparts/backoffice-backend/pkg/errors"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct runs the tag-based validations on the input DTO and converts
// failures into a coded validation error with per-field details.
func Struct(input any) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid input")
	}

	fields := make(map[string]string, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
		parts = append(parts, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}

	return pkgerrors.
		Newf(pkgerrors.CodeValidation, "invalid input: %s", strings.Join(parts, ", ")).
		WithDetails(fields)
}
