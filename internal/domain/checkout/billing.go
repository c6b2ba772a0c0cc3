package checkout

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// BillingDetails is the customer data captured before a payment intent is
// requested. All fields are required.
type BillingDetails struct {
	FullName   string `json:"fullName"   validate:"required"`
	Email      string `json:"email"      validate:"required,email"`
	Phone      string `json:"phone"      validate:"required,phone"`
	Country    string `json:"country"    validate:"required"`
	Address    string `json:"address"    validate:"required"`
	City       string `json:"city"       validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
}

// ValidationError carries per-field messages for a rejected billing form.
// It is local and non-fatal: the session stays in its current step and no
// network call is made.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return "invalid billing details: " + strings.Join(names, ", ")
}

// phonePattern is deliberately permissive: digits with optional leading +,
// separators and grouping, between 6 and 20 characters.
var phonePattern = regexp.MustCompile(`^\+?[0-9(][0-9 ()-]{4,18}[0-9]$`)

var billingValidator = newBillingValidator()

func newBillingValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for a blank tag name.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateBilling checks the form synchronously and returns a
// *ValidationError describing every failing field, or nil.
func ValidateBilling(b BillingDetails) error {
	err := billingValidator.Struct(b)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe.Field())] = fieldMessage(fe.Tag())
	}
	return &ValidationError{Fields: fields}
}

func fieldName(structField string) string {
	if structField == "" {
		return structField
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

func fieldMessage(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must be a valid phone number"
	default:
		return "is invalid"
	}
}
