package habits

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Draft is the user-editable part of a habit. Its validate tags are the form schema.
type Draft struct {
	Name            string    `json:"name" validate:"required,max=50"`
	Description     string    `json:"description" validate:"max=200"`
	Frequency       Frequency `json:"frequency" validate:"required,oneof=daily weekly"`
	ReminderEnabled bool      `json:"reminder_enabled"`
	ReminderTime    string    `json:"reminder_time" validate:"omitempty,clock"`
}

// FieldError is a single schema violation keyed by the JSON field name.
type FieldError struct {
	Field   string
	Message string
}

// ValidationErrors lists every schema violation of a draft.
type ValidationErrors []FieldError

func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fieldErr := range e {
		parts = append(parts, fieldErr.Field+": "+fieldErr.Message)
	}
	return "habits: invalid draft: " + strings.Join(parts, "; ")
}

var fieldMessages = map[string]string{
	"name.required":                     "Name is required",
	"name.max":                          "Name is too long",
	"description.max":                   "Description is too long",
	"frequency.required":                "Frequency is required",
	"frequency.oneof":                   "Frequency must be daily or weekly",
	"reminder_time.clock":               "Reminder time must use HH:MM",
	"reminder_time.required_with_alarm": "Reminder time is required when reminders are enabled",
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	if err := validate.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := ParseClockMinute(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	validate.RegisterStructValidation(func(sl validator.StructLevel) {
		draft, ok := sl.Current().Interface().(Draft)
		if !ok {
			return
		}
		if draft.ReminderEnabled && draft.ReminderTime == "" {
			sl.ReportError(draft.ReminderTime, "reminder_time", "ReminderTime", "required_with_alarm", "")
		}
	}, Draft{})
	return validate
}

// ValidateDraft normalizes the draft and checks it against the schema.
// The returned draft is only meaningful when no errors are returned.
func ValidateDraft(input Draft) (Draft, ValidationErrors) {
	draft := Draft{
		Name:            strings.TrimSpace(input.Name),
		Description:     strings.TrimSpace(input.Description),
		Frequency:       Frequency(strings.ToLower(strings.TrimSpace(string(input.Frequency)))),
		ReminderEnabled: input.ReminderEnabled,
		ReminderTime:    strings.TrimSpace(input.ReminderTime),
	}
	if draft.Frequency == "" {
		draft.Frequency = FrequencyDaily
	}
	if !draft.ReminderEnabled {
		draft.ReminderTime = ""
	}

	err := draftValidator.Struct(draft)
	if err == nil {
		return draft, nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return Draft{}, ValidationErrors{{Field: "draft", Message: err.Error()}}
	}
	fieldErrs := make(ValidationErrors, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		fieldErrs = append(fieldErrs, FieldError{
			Field:   fieldErr.Field(),
			Message: messageFor(fieldErr.Field(), fieldErr.Tag()),
		})
	}
	return Draft{}, fieldErrs
}

func messageFor(field string, tag string) string {
	if message, ok := fieldMessages[field+"."+tag]; ok {
		return message
	}
	return "failed on '" + tag + "' validation"
}
