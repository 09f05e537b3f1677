package events

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return NewValidator(time.UTC, func() time.Time { return fixedNow })
}

func strPtr(value string) *string {
	return &value
}

func demoInput() EventInput {
	return EventInput{
		Title:       strPtr("Demo Event"),
		Description: strPtr("A sample demo event."),
		Venue:       strPtr("Pune"),
		Date:        strPtr("2030-01-01"),
		Time:        strPtr("10:00:00"),
	}
}

func assertValidationError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, field, verr.Field)
}

func TestValidateCreateSuccess(t *testing.T) {
	fields, err := newTestValidator().ValidateCreate(demoInput())

	require.NoError(t, err)
	require.Equal(t, EventFields{
		Title:       "Demo Event",
		Description: "A sample demo event.",
		Venue:       "Pune",
		Date:        "2030-01-01",
		Time:        "10:00:00",
	}, fields)
}

func TestValidateCreateNormalizes(t *testing.T) {
	input := demoInput()
	input.Title = strPtr("  Demo Event  ")
	input.Time = strPtr("09:30")

	fields, err := newTestValidator().ValidateCreate(input)

	require.NoError(t, err)
	require.Equal(t, "Demo Event", fields.Title)
	require.Equal(t, "09:30:00", fields.Time)
}

func TestValidateCreateRequiresEveryField(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*EventInput)
		field string
	}{
		{"title", func(in *EventInput) { in.Title = nil }, "title"},
		{"blank description", func(in *EventInput) { in.Description = strPtr("   ") }, "description"},
		{"venue", func(in *EventInput) { in.Venue = nil }, "venue"},
		{"date", func(in *EventInput) { in.Date = nil }, "date"},
		{"time", func(in *EventInput) { in.Time = nil }, "time"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := demoInput()
			tt.mut(&input)

			_, err := newTestValidator().ValidateCreate(input)

			assertValidationError(t, err, tt.field)
		})
	}
}

func TestValidateCreateEnforcesTextLengths(t *testing.T) {
	tests := []struct {
		name    string
		mut     func(*EventInput)
		field   string
		message string
	}{
		{"short title", func(in *EventInput) { in.Title = strPtr("Hi") }, "title", "at least 5"},
		{"long title", func(in *EventInput) { in.Title = strPtr(strings.Repeat("x", 21)) }, "title", "maximum length of 20"},
		{"short description", func(in *EventInput) { in.Description = strPtr("x") }, "description", "at least 10"},
		{"long description", func(in *EventInput) { in.Description = strPtr(strings.Repeat("d", 101)) }, "description", "maximum length of 100"},
		{"short venue", func(in *EventInput) { in.Venue = strPtr("A") }, "venue", "at least 4"},
		{"long venue", func(in *EventInput) { in.Venue = strPtr(strings.Repeat("v", 101)) }, "venue", "maximum length of 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := demoInput()
			tt.mut(&input)

			_, err := newTestValidator().ValidateCreate(input)

			assertValidationError(t, err, tt.field)
			require.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidateCreateAcceptsLengthBoundaries(t *testing.T) {
	input := demoInput()
	input.Title = strPtr("Expo!")
	input.Description = strPtr(strings.Repeat("d", 100))
	input.Venue = strPtr(" Agra ")

	fields, err := newTestValidator().ValidateCreate(input)

	require.NoError(t, err)
	require.Equal(t, "Expo!", fields.Title)
	require.Equal(t, "Agra", fields.Venue)

	input = demoInput()
	input.Title = strPtr(strings.Repeat("é", 20))
	input.Description = strPtr("Ten chars!")
	input.Venue = strPtr(strings.Repeat("v", 100))
	_, err = newTestValidator().ValidateCreate(input)
	require.NoError(t, err)
}

func TestValidateCreateRejectsNumericText(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*EventInput)
		field string
	}{
		{"title", func(in *EventInput) { in.Title = strPtr("12345") }, "title"},
		{"padded title", func(in *EventInput) { in.Title = strPtr("  123456  ") }, "title"},
		{"description", func(in *EventInput) { in.Description = strPtr("1234567890") }, "description"},
		{"venue", func(in *EventInput) { in.Venue = strPtr("4040") }, "venue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := demoInput()
			tt.mut(&input)

			_, err := newTestValidator().ValidateCreate(input)

			assertValidationError(t, err, tt.field)
			require.Contains(t, err.Error(), "must not be a number")
		})
	}

	input := demoInput()
	input.Title = strPtr("Expo 2030")
	_, err := newTestValidator().ValidateCreate(input)
	require.NoError(t, err)
}

func TestValidatePatchChecksLengthAfterStrippingMarkup(t *testing.T) {
	_, err := newTestValidator().ValidatePatch(EventInput{Title: strPtr("<b>Hi</b>")})
	assertValidationError(t, err, "title")

	out, err := newTestValidator().ValidatePatch(EventInput{Title: strPtr(`<span class="headline">Jazz Night</span>`)})
	require.NoError(t, err)
	require.Equal(t, "Jazz Night", *out.Title)
}

func TestValidateCreateRejectsBadFormats(t *testing.T) {
	input := demoInput()
	input.Date = strPtr("01/01/2030")
	_, err := newTestValidator().ValidateCreate(input)
	assertValidationError(t, err, "date")

	input = demoInput()
	input.Time = strPtr("10am")
	_, err = newTestValidator().ValidateCreate(input)
	assertValidationError(t, err, "time")
}

func TestValidateCreateRejectsPastOrPresentSchedule(t *testing.T) {
	input := demoInput()
	input.Date = strPtr("2026-06-01")
	input.Time = strPtr("12:00:00")

	_, err := newTestValidator().ValidateCreate(input)

	assertValidationError(t, err, "date")
	require.Contains(t, err.Error(), "future")
}

func TestValidatePatchRequiresAField(t *testing.T) {
	_, err := newTestValidator().ValidatePatch(EventInput{})

	require.Error(t, err)
}

func TestValidatePatchStripsMarkup(t *testing.T) {
	out, err := newTestValidator().ValidatePatch(EventInput{
		Title: strPtr(`<b>Rock & Roll</b> Night<script>alert(1)</script>`),
		Venue: strPtr("  Pune  "),
	})
	require.NoError(t, err)
	require.Equal(t, "Rock & Roll Night", *out.Title)
	require.Equal(t, "Pune", *out.Venue)
	require.Nil(t, out.Description)

	_, err = newTestValidator().ValidatePatch(EventInput{Description: strPtr(`<img src=x onerror="alert(1)">`)})
	assertValidationError(t, err, "description")
}

func TestValidateUpdateUsesStoredHalfOfSchedule(t *testing.T) {
	existing := EventFields{Title: "T", Description: "D", Venue: "V", Date: "2030-01-01", Time: "10:00:00"}

	// Moving only the date into the past must fail using the stored time.
	_, err := newTestValidator().ValidateUpdate(existing, EventInput{Date: strPtr("2026-06-01")})
	assertValidationError(t, err, "date")

	// Moving only the time keeps the stored (future) date.
	fields, err := newTestValidator().ValidateUpdate(existing, EventInput{Time: strPtr("08:15")})
	require.NoError(t, err)
	require.Equal(t, "2030-01-01", fields.Date)
	require.Equal(t, "08:15:00", fields.Time)
}

func TestValidateUpdateSkipsScheduleWhenUntouched(t *testing.T) {
	// A stored schedule that has since passed does not block unrelated edits.
	existing := EventFields{Title: "T", Description: "D", Venue: "V", Date: "2020-01-01", Time: "10:00:00"}

	fields, err := newTestValidator().ValidateUpdate(existing, EventInput{Venue: strPtr("Mumbai")})

	require.NoError(t, err)
	require.Equal(t, "Mumbai", fields.Venue)
	require.Equal(t, "2020-01-01", fields.Date)
}

func TestOverlayCarriesOverOmittedFields(t *testing.T) {
	base := EventFields{Title: "T", Description: "D", Venue: "Pune", Date: "2030-01-01", Time: "10:00:00"}

	out := Overlay(base, EventInput{Venue: strPtr("Mumbai")})

	require.Equal(t, EventFields{Title: "T", Description: "D", Venue: "Mumbai", Date: "2030-01-01", Time: "10:00:00"}, out)
}

func TestScheduledAtUsesLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	at, err := ScheduledAt("2030-01-01", "10:00:00", loc)

	require.NoError(t, err)
	require.Equal(t, time.Date(2030, 1, 1, 4, 30, 0, 0, time.UTC), at.UTC())
}
