package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type QuestionParams struct {
	Question string `json:"question" validate:"required"`
}

type RenameParams struct {
	NewTitle string `json:"newTitle" validate:"required"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *QuestionParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *RenameParams) Validate() map[string]string {
	return validateStruct(params)
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
