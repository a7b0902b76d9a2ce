package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/codr1/roombook/internal/booking"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, FieldError{Field: field, Reason: "is required"}
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, FieldError{Field: field, Reason: "must be greater than 0"}
	}
	return value, nil
}

// PathID parses the {id} path segment.
func PathID(r *http.Request) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue("id"), "id")
}

// ParseTimestamp parses an RFC 3339 timestamp. The offset the caller sent is
// kept on the returned time.
func ParseTimestamp(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, FieldError{Field: field, Reason: "is required"}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, FieldError{Field: field, Reason: "must be an RFC 3339 timestamp"}
	}
	if !booking.Storable(parsed) {
		return time.Time{}, FieldError{Field: field, Reason: fmt.Sprintf("must fall between %s and %s",
			booking.MinStorableTime.Format(time.RFC3339), booking.MaxStorableTime.Format(time.RFC3339))}
	}
	return parsed, nil
}

// RequiredString trims raw and fails when nothing is left.
func RequiredString(raw string, field string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", FieldError{Field: field, Reason: "is required"}
	}
	return value, nil
}

func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func BadRequest(message string, err error) HandlerError {
	return HandlerError{Status: http.StatusBadRequest, Message: message, Err: err}
}

func Internal(message string, err error) HandlerError {
	return HandlerError{Status: http.StatusInternalServerError, Message: message, Err: err}
}

func NotFound(entity string) HandlerError {
	return HandlerError{Status: http.StatusNotFound, Message: fmt.Sprintf("%s not found", entity)}
}
