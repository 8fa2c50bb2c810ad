package app

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"quiz-forms-service/internal/domain"
)

const minChoiceOptions = 2

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterStructValidation(validateQuestionOptions, domain.QuestionInput{})
	return v
}

func validateQuestionOptions(sl validator.StructLevel) {
	q := sl.Current().Interface().(domain.QuestionInput)
	if q.Type != domain.QuestionSingleChoice {
		return
	}
	if len(effectiveOptions(q.Options)) < minChoiceOptions {
		sl.ReportError(q.Options, "options", "Options", "choices", fmt.Sprint(minChoiceOptions))
	}
}

// NormalizeQuiz trims the payload and drops options that do not apply.
func NormalizeQuiz(in domain.QuizInput) domain.QuizInput {
	out := domain.QuizInput{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		OwnerID:     strings.TrimSpace(in.OwnerID),
		Questions:   make([]domain.QuestionInput, 0, len(in.Questions)),
	}
	for _, q := range in.Questions {
		nq := domain.QuestionInput{
			Text:    strings.TrimSpace(q.Text),
			Type:    q.Type,
			Options: []string{},
		}
		if q.Type == domain.QuestionSingleChoice {
			nq.Options = effectiveOptions(q.Options)
		}
		out.Questions = append(out.Questions, nq)
	}
	return out
}

// ValidateQuiz checks a normalized payload and returns a *domain.ValidationError
// with one message per failing field.
func ValidateQuiz(in domain.QuizInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &domain.ValidationError{Fields: map[string]string{"_": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if _, seen := fields[key]; !seen {
			fields[key] = fieldMessage(fe)
		}
	}
	return &domain.ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "cannot exceed " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "choices":
		return "single-choice questions need at least " + fe.Param() + " non-empty options"
	default:
		return "is invalid"
	}
}

func effectiveOptions(options []string) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
