package service

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"valuestream/internal/domain"
)

// validate is a singleton validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsInf(f, 0) && !math.IsNaN(f)
	}); err != nil {
		panic(err)
	}
	return v
}

// processInput mirrors the editable fields of a process
type processInput struct {
	ID               string   `json:"id" validate:"required,max=128"`
	Name             string   `json:"name" validate:"max=256"`
	ProcessTime      float64  `json:"processTime" validate:"finite,gte=0"`
	CompleteAccurate *float64 `json:"completeAccurate" validate:"omitempty,finite,gte=0,lte=100"`
}

// connectionInput mirrors the editable fields of a connection
type connectionInput struct {
	ID       string  `json:"id" validate:"required,max=128"`
	SourceID string  `json:"sourceId" validate:"required"`
	TargetID string  `json:"targetId" validate:"required,nefield=SourceID"`
	WaitTime float64 `json:"waitTime" validate:"finite,gte=0"`
}

// ValidateProcess checks the numeric ranges and identity of a process
func ValidateProcess(p domain.ProcessBlock) error {
	in := processInput{
		ID:               p.ID,
		Name:             p.Name,
		ProcessTime:      p.Metrics.ProcessTime,
		CompleteAccurate: p.Metrics.CompleteAccurate,
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: process %q: %v", ErrInvalid, p.ID, formatValidationError(err))
	}
	return nil
}

// ValidateConnection checks the endpoints and wait time of a connection
func ValidateConnection(c domain.Connection) error {
	in := connectionInput{
		ID:       c.ID,
		SourceID: c.SourceID,
		TargetID: c.TargetID,
		WaitTime: c.Metrics.WaitTime,
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: connection %q: %v", ErrInvalid, c.ID, formatValidationError(err))
	}
	return nil
}

// ValidateContents checks every process and connection
func ValidateContents(processes []domain.ProcessBlock, connections []domain.Connection) error {
	for _, p := range processes {
		if err := ValidateProcess(p); err != nil {
			return err
		}
	}
	for _, c := range connections {
		if err := ValidateConnection(c); err != nil {
			return err
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		param := e.Param()

		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "finite":
			return fmt.Errorf("%s: must be a finite number", field)
		case "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s characters", field, param)
		case "nefield":
			return fmt.Errorf("%s: must differ from %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}

	return err
}
