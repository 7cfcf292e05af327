package usecase

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// checkInput runs struct-tag validation plus the model's own Validate.
func checkInput(v interface{ Validate() error }) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
