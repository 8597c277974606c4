package validation

import (
	"autofeedr/internal/executor"
	"autofeedr/internal/model"
	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"reflect"
	"strings"
)

// NewValidator returns a validator that reports fields by their JSON names and
// knows the weekday, hhmm and commit_template tags.
func NewValidator() (*validator.Validate, error) {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		fullJson := field.Tag.Get("json")
		if fullJson == "-" {
			return ""
		}
		jsonName := strings.SplitN(fullJson, ",", 2)[0]
		if jsonName != "" {
			return jsonName
		}
		return field.Name
	})
	if err := RegisterSettingsValidation(validate); err != nil {
		return nil, errors.Wrap(err, "failed registering settings validation")
	}
	return validate, nil
}

func RegisterSettingsValidation(validate *validator.Validate) error {
	err := validate.RegisterValidation("weekday", func(fl validator.FieldLevel) bool {
		_, err := model.ParseWeekday(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := model.ParseTimeOfDay(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}

	return validate.RegisterValidation("commit_template", func(fl validator.FieldLevel) bool {
		return executor.CheckCommitTemplate(fl.Field().String()) == nil
	})
}

// Describe flattens validation failures into one readable line.
func Describe(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		message := fieldErr.Namespace() + " failed " + fieldErr.Tag()
		if fieldErr.Param() != "" {
			message += "=" + fieldErr.Param()
		}
		messages = append(messages, message)
	}
	return strings.Join(messages, "; ")
}
