package chat

import (
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// MaxMessageRunes is the longest user message accepted, measured in Unicode
// code points on the raw string.
const MaxMessageRunes = 500

// Validation failures. ErrMissingMessage and ErrWrongType both surface to
// the caller as "Invalid message"; ErrMessageTooLong as "Message too long".
var (
	ErrMissingMessage = errors.New("message is missing or empty")
	ErrWrongType      = errors.New("message is not a string")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// IsValidationError reports whether err is a client-fault input rejection.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingMessage) ||
		errors.Is(err, ErrWrongType) ||
		errors.Is(err, ErrMessageTooLong)
}

// ValidateMessage checks the raw JSON value of the message field before any
// upstream call is made. It is a pure check: no normalization is applied and
// the accepted message is returned exactly as supplied.
func ValidateMessage(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", ErrMissingMessage
	}

	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", ErrWrongType
	}

	if msg == "" {
		return "", ErrMissingMessage
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}

	return msg, nil
}
