package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"timeout/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so messages match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return ValidateUsername(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return ValidatePassword(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return models.ValidEventType(models.EventType(fl.Field().String()))
	})
	_ = v.RegisterValidation("privacy", func(fl validator.FieldLevel) bool {
		return models.ValidPrivacy(models.PostPrivacy(fl.Field().String()))
	})
	_ = v.RegisterValidation("note_category", func(fl validator.FieldLevel) bool {
		return models.ValidNoteCategory(models.NoteCategory(fl.Field().String()))
	})
	return v
}

// Struct validates s against its `validate` tags. Failures come back as a
// VALIDATION_ERROR AppError whose Details maps each json field to a message;
// the message of the first failure becomes the error text.
func Struct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return models.NewInternalError(err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = message(fe)
	}
	appErr := models.NewValidationError(message(verrs[0]))
	appErr.Details = fields
	return appErr
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "email":
		return "invalid email format"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "username":
		return ValidateUsername(fe.Value().(string)).Error()
	case "password":
		return ValidatePassword(fe.Value().(string)).Error()
	case "event_type", "privacy", "note_category":
		return fmt.Sprintf("%s has an unknown value %q", field, fe.Value())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
