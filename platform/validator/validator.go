// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"listing_leads_backend/platform/phone"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator with the project's custom tags:
//
//	phone    value normalizes to a valid E.164 number
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with custom tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phone.IsValid(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// Validate is the shared validator instance used by HTTP handlers.
var Validate = New()
