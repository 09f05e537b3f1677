package events

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/Togather-Foundation/eventease/internal/sanitize"
	"github.com/go-playground/validator/v10"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var timeLayouts = []string{TimeLayout, "15:04"}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// EventInput is a request payload. Nil fields were not supplied, which is what
// lets a partial update carry over the stored values. Text lengths count
// characters after markup is stripped.
type EventInput struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,notblank,notnumeric,min=5,max=20"`
	Description *string `json:"description,omitempty" validate:"omitempty,notblank,notnumeric,min=10,max=100"`
	Venue       *string `json:"venue,omitempty" validate:"omitempty,notblank,notnumeric,min=4,max=100"`
	Date        *string `json:"date,omitempty" validate:"omitempty,notblank"`
	Time        *string `json:"time,omitempty" validate:"omitempty,notblank"`
}

// IsEmpty reports whether no field was supplied.
func (in EventInput) IsEmpty() bool {
	return in.Title == nil && in.Description == nil && in.Venue == nil && in.Date == nil && in.Time == nil
}

// IsComplete reports whether every field was supplied.
func (in EventInput) IsComplete() bool {
	return in.Title != nil && in.Description != nil && in.Venue != nil && in.Date != nil && in.Time != nil
}

// TouchesSchedule reports whether the input changes the date or time.
func (in EventInput) TouchesSchedule() bool {
	return in.Date != nil || in.Time != nil
}

// Overlay returns base with every supplied field of in applied on top.
func Overlay(base EventFields, in EventInput) EventFields {
	out := base
	if in.Title != nil {
		out.Title = *in.Title
	}
	if in.Description != nil {
		out.Description = *in.Description
	}
	if in.Venue != nil {
		out.Venue = *in.Venue
	}
	if in.Date != nil {
		out.Date = *in.Date
	}
	if in.Time != nil {
		out.Time = *in.Time
	}
	return out
}

// ScheduledAt combines a catalog date and time into an instant in loc.
func ScheduledAt(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	t, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

func parseClock(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ValidationError{Field: "time", Message: "must be HH:MM or HH:MM:SS"}
}

// Validator checks event payloads against field rules and the requirement
// that an event is always scheduled in the future.
type Validator struct {
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

func NewValidator(loc *time.Location, now func() time.Time) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("notnumeric", func(fl validator.FieldLevel) bool {
		return !isNumeric(strings.TrimSpace(fl.Field().String()))
	})
	return &Validator{validate: v, loc: loc, now: now}
}

// Now returns the current instant in the catalog's time zone.
func (v *Validator) Now() time.Time {
	return v.now().In(v.loc)
}

// Location returns the time zone catalog dates and times are interpreted in.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// ValidateCreate requires every field and returns the normalized fields of a
// new event.
func (v *Validator) ValidateCreate(input EventInput) (EventFields, error) {
	required := []struct {
		field string
		value *string
	}{
		{"title", input.Title},
		{"description", input.Description},
		{"venue", input.Venue},
		{"date", input.Date},
		{"time", input.Time},
	}
	for _, r := range required {
		if r.value == nil || strings.TrimSpace(*r.value) == "" {
			return EventFields{}, ValidationError{Field: r.field, Message: "required"}
		}
	}

	normalized, err := v.ValidatePatch(input)
	if err != nil {
		return EventFields{}, err
	}
	fields := Overlay(EventFields{}, normalized)
	if err := v.CheckSchedule(fields.Date, fields.Time); err != nil {
		return EventFields{}, err
	}
	return fields, nil
}

// ValidatePatch checks the supplied fields of a partial payload and returns
// them as plain text, with date and time in canonical layouts. It does not
// check the schedule, which needs the stored value of whichever half is
// missing.
func (v *Validator) ValidatePatch(input EventInput) (EventInput, error) {
	if input.IsEmpty() {
		return input, ValidationError{Message: "at least one field is required"}
	}
	var out EventInput
	for _, f := range []struct {
		field string
		in    *string
		out   **string
	}{
		{"title", input.Title, &out.Title},
		{"description", input.Description, &out.Description},
		{"venue", input.Venue, &out.Venue},
	} {
		if f.in == nil {
			continue
		}
		text := sanitize.Text(*f.in)
		if text == "" {
			return input, ValidationError{Field: f.field, Message: "cannot be empty"}
		}
		*f.out = &text
	}
	out.Date, out.Time = input.Date, input.Time
	if err := v.validate.Struct(out); err != nil {
		return input, translate(err)
	}

	if input.Date != nil {
		d, err := time.Parse(DateLayout, strings.TrimSpace(*input.Date))
		if err != nil {
			return input, ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
		value := d.Format(DateLayout)
		out.Date = &value
	}
	if input.Time != nil {
		t, err := parseClock(*input.Time)
		if err != nil {
			return input, err
		}
		value := t.Format(TimeLayout)
		out.Time = &value
	}
	return out, nil
}

// ValidateUpdate validates a partial payload against an existing event and
// returns the fields the event would have after the update.
func (v *Validator) ValidateUpdate(existing EventFields, input EventInput) (EventFields, error) {
	normalized, err := v.ValidatePatch(input)
	if err != nil {
		return EventFields{}, err
	}
	fields := Overlay(existing, normalized)
	if normalized.TouchesSchedule() {
		if err := v.CheckSchedule(fields.Date, fields.Time); err != nil {
			return EventFields{}, err
		}
	}
	return fields, nil
}

// CheckSchedule fails unless date+time lies strictly after the current instant.
func (v *Validator) CheckSchedule(date, clock string) error {
	at, err := ScheduledAt(date, clock, v.loc)
	if err != nil {
		return err
	}
	if !at.After(v.now()) {
		return ValidationError{Field: "date", Message: "event must be scheduled in the future"}
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ValidationError{Message: err.Error()}
	}
	first := verrs[0]
	switch first.Tag() {
	case "max":
		return ValidationError{Field: first.Field(), Message: fmt.Sprintf("exceeds maximum length of %s characters", first.Param())}
	case "min":
		return ValidationError{Field: first.Field(), Message: fmt.Sprintf("must be at least %s characters", first.Param())}
	case "notnumeric":
		return ValidationError{Field: first.Field(), Message: "must not be a number"}
	case "notblank":
		return ValidationError{Field: first.Field(), Message: "cannot be empty"}
	default:
		return ValidationError{Field: first.Field(), Message: "invalid"}
	}
}

// isNumeric reports whether s is made only of digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
