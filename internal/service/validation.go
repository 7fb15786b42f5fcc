package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/Marga-Ghale/ora-template-studio/internal/composition"
	"github.com/Marga-Ghale/ora-template-studio/internal/models"
	"github.com/go-playground/validator/v10"
)

// ValidationError aggregates every problem found in a form. One problem reads
// as a plain sentence; several become a bulleted list.
type ValidationError struct {
	Messages []string
	Cause    error
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func (e *ValidationError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	var b strings.Builder
	b.WriteString("Please fix the following:")
	for _, m := range e.Messages {
		b.WriteString("\n• ")
		b.WriteString(m)
	}
	return b.String()
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateForm checks the form against its schema and returns a
// *ValidationError listing every failed field.
func ValidateForm(form models.ProjectTemplateForm) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fieldMessage(fe))
	}
	return &ValidationError{Messages: messages}
}

// validateComposition runs the form schema plus the precedence graph check.
func validateComposition(form models.ProjectTemplateForm, views models.Views) error {
	var messages []string
	if err := ValidateForm(form); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return err
		}
		messages = append(messages, verr.Messages...)
	}
	var cause error
	if composition.PrecedenceGraphHasCycle(views.Deliverables) {
		messages = append(messages, cycleMessage)
		cause = composition.ErrPrecedenceCycle
	}
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages, Cause: cause}
}

const cycleMessage = "deliverable precedence contains a cycle"

func cycleError() error {
	return &ValidationError{Messages: []string{cycleMessage}, Cause: composition.ErrPrecedenceCycle}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
