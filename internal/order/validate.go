package order

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the order tags registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		// Registration only fails for an empty tag or nil func.
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// contact is the visitor-supplied part of an order.
type contact struct {
	Phone string `validate:"required,min=6,max=15,phone"`
}
