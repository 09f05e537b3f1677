package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/Togather-Foundation/eventease/internal/domain/events"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func toPgDate(value string) (pgtype.Date, error) {
	if value == "" {
		return pgtype.Date{}, nil
	}
	parsed, err := time.Parse(events.DateLayout, value)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return pgtype.Date{Time: parsed, Valid: true}, nil
}

func fromPgDate(value pgtype.Date) string {
	if !value.Valid {
		return ""
	}
	return value.Time.Format(events.DateLayout)
}

func toPgTime(value string) (pgtype.Time, error) {
	if value == "" {
		return pgtype.Time{}, nil
	}
	parsed, err := time.Parse(events.TimeLayout, value)
	if err != nil {
		return pgtype.Time{}, fmt.Errorf("parse time %q: %w", value, err)
	}
	since := time.Duration(parsed.Hour())*time.Hour +
		time.Duration(parsed.Minute())*time.Minute +
		time.Duration(parsed.Second())*time.Second
	return pgtype.Time{Microseconds: since.Microseconds(), Valid: true}, nil
}

func fromPgTime(value pgtype.Time) string {
	if !value.Valid {
		return ""
	}
	return time.Time{}.Add(time.Duration(value.Microseconds) * time.Microsecond).Format(events.TimeLayout)
}

// scheduleArgs converts a validated date and time into query arguments.
func scheduleArgs(fields events.EventFields) (pgtype.Date, pgtype.Time, error) {
	date, err := toPgDate(fields.Date)
	if err != nil {
		return pgtype.Date{}, pgtype.Time{}, err
	}
	clock, err := toPgTime(fields.Time)
	if err != nil {
		return pgtype.Date{}, pgtype.Time{}, err
	}
	return date, clock, nil
}

func nullableText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func timestamp(value pgtype.Timestamptz) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return value.Time.UTC()
}
