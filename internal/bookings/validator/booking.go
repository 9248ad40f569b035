package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"slotbook/pkg/logger"
	"slotbook/pkg/model"
)

// Zero-padded 24h clock. Fixed-width HH:MM makes lexicographic comparison
// equivalent to chronological comparison, which the overlap check relies on.
var timeOfDayRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate      *validator.Validate
	maxNoteLength int
	logger        *logger.Logger
}

func NewBookingValidator(maxNoteLength int, log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("time_of_day", validateTimeOfDay); err != nil {
		log.Fatal("Failed to register 'time_of_day' validator",
			"error", err,
		)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate:      v,
		maxNoteLength: maxNoteLength,
		logger:        log,
	}
}

func validateTimeOfDay(fl validator.FieldLevel) bool {
	return timeOfDayRegex.MatchString(fl.Field().String())
}

// ValidateDraft checks a creation input: struct tags, the half-open interval
// invariant start < end, and the configured note length bound.
func (v *BookingValidator) ValidateDraft(draft *model.BookingDraft) error {
	if err := v.validate.Struct(draft); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if draft.StartTime >= draft.EndTime {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: "end_time must be after start_time",
			},
		}
	}

	if len(draft.Note) > v.maxNoteLength {
		return ValidationErrors{
			ValidationError{
				Field:   "Note",
				Message: fmt.Sprintf("note exceeds maximum length of %d characters", v.maxNoteLength),
			},
		}
	}

	return nil
}

// ValidatePatch checks a partial update. The start < end invariant across
// patched and current values is enforced by the service after the overlay,
// so only intra-patch consistency is checked here.
func (v *BookingValidator) ValidatePatch(patch *model.BookingPatch) error {
	if err := v.validate.Struct(patch); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if patch.StartTime != nil && patch.EndTime != nil {
		if *patch.StartTime >= *patch.EndTime {
			return ValidationErrors{
				ValidationError{
					Field:   "EndTime",
					Message: "end_time must be after start_time",
				},
			}
		}
	}

	if patch.Note != nil && len(*patch.Note) > v.maxNoteLength {
		return ValidationErrors{
			ValidationError{
				Field:   "Note",
				Message: fmt.Sprintf("note exceeds maximum length of %d characters", v.maxNoteLength),
			},
		}
	}

	return nil
}

// ValidateInterval enforces the interval invariant on effective values, i.e.
// after a patch has been overlaid onto the current booking.
func (v *BookingValidator) ValidateInterval(startTime, endTime string) error {
	if startTime >= endTime {
		return ValidationErrors{
			ValidationError{
				Field:   "EndTime",
				Message: "end_time must be after start_time",
			},
		}
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a calendar date in YYYY-MM-DD format", err.Field())
		case "time_of_day":
			message = fmt.Sprintf("%s must be a time of day in HH:MM format (00:00-23:59)", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
