package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

type QueryParams struct {
	Question string `json:"question" validate:"required"`
}

type SessionParams struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=active archived paused"`
}

// Count is clamped to [1,50] by the agent, not rejected here.
type QuizParams struct {
	Count int `json:"count"`
}

type AssessParams struct {
	Answers []int `json:"answers" validate:"required,min=1,dive,min=0"`
}

func (params *QueryParams) Validate() map[string]string   { return validateStruct(params) }
func (params *SessionParams) Validate() map[string]string { return validateStruct(params) }
func (params *QuizParams) Validate() map[string]string    { return validateStruct(params) }
func (params *AssessParams) Validate() map[string]string  { return validateStruct(params) }

func validateStruct(v any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(v); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}
