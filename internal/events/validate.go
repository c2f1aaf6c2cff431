package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries a message safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

var fieldLabels = map[string]string{
	"Title":            "Title",
	"Description":      "Description",
	"StartsAt":         "Date and Time",
	"Venue":            "Venue",
	"Category":         "Category",
	"RegistrationLink": "Registration link",
	"MaxCapacity":      "Capacity",
	"ImageURL":         "Image URL",
	"ResponsesLink":    "Responses link",
}

// Validate checks an event before it is saved. It runs at the request
// boundary so a rejected edit never touches stored state.
func Validate(e Event) error {
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Message: describe(verrs[0])}
		}
		return err
	}
	if e.EndsAt != nil && e.EndsAt.Before(*e.StartsAt) {
		return &ValidationError{Message: "End date cannot be before start date!"}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	label := fieldLabels[fe.StructField()]
	if label == "" {
		label = fe.StructField()
	}
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	}
	return label + " is invalid"
}

// SafeRedirect returns the trimmed link when it may be followed as an
// outbound redirect. Only http and https targets are allowed.
func SafeRedirect(link string) (string, bool) {
	link = strings.TrimSpace(link)
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link, true
	}
	return "", false
}
