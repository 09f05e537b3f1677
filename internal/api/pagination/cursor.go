package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// EventCursor is the position of an event in schedule order (date, time, id).
type EventCursor struct {
	Date string
	Time string
	ID   string
}

// EncodeEventCursor encodes the cursor as base64(date|time|id).
func EncodeEventCursor(date, clock, id string) string {
	value := fmt.Sprintf("%s|%s|%s", date, clock, strings.ToUpper(strings.TrimSpace(id)))
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeEventCursor decodes base64(date|time|id) into an EventCursor.
func DecodeEventCursor(cursor string) (EventCursor, error) {
	decoded, err := decode(cursor)
	if err != nil {
		return EventCursor{}, err
	}
	parts := strings.Split(decoded, "|")
	if len(parts) != 3 {
		return EventCursor{}, ErrInvalidCursor
	}
	if _, err := time.Parse("2006-01-02", parts[0]); err != nil {
		return EventCursor{}, ErrInvalidCursor
	}
	if _, err := time.Parse("15:04:05", parts[1]); err != nil {
		return EventCursor{}, ErrInvalidCursor
	}
	id := strings.ToUpper(strings.TrimSpace(parts[2]))
	if id == "" {
		return EventCursor{}, ErrInvalidCursor
	}
	return EventCursor{Date: parts[0], Time: parts[1], ID: id}, nil
}

// EncodeApprovalCursor encodes an approval id. Approval ids are ULIDs, so id
// order is creation order.
func EncodeApprovalCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte("apr_" + strings.ToUpper(strings.TrimSpace(id))))
}

// DecodeApprovalCursor decodes base64(apr_<id>) into an approval id.
func DecodeApprovalCursor(cursor string) (string, error) {
	decoded, err := decode(cursor)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(decoded, "apr_") {
		return "", ErrInvalidCursor
	}
	id := strings.TrimPrefix(decoded, "apr_")
	if id == "" {
		return "", ErrInvalidCursor
	}
	return id, nil
}

func decode(cursor string) (string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return "", ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}
	return string(decoded), nil
}
