package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	MsgRequired = "This field is required."
	MsgBlank    = "This field may not be blank."
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// Validate is the shared validator. It knows the "slug" tag in addition to
// the built-in ones.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// FieldErrors maps a wire field name to its violations.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Check runs tag against value and records every violation under field.
func (fe FieldErrors) Check(field string, value any, tag string) {
	err := Validate.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fe.Add(field, err.Error())
		return
	}
	for _, ve := range verrs {
		fe.Add(field, message(ve))
	}
}

func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for field := range fe {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(fe[field], " "))
	}
	return strings.Join(parts, "; ")
}

// ValidationResponse answers 400 with the field map as body.
func ValidationResponse(w http.ResponseWriter, fe FieldErrors) {
	JSONResponse(w, http.StatusBadRequest, fe)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MsgBlank
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "slug":
		return `Enter a valid "slug" consisting of letters, numbers, underscores or hyphens.`
	}
	return fmt.Sprintf("Failed on the %q rule.", fe.Tag())
}
