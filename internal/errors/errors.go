// Package errors provides structured error types for the bot transport.
package errors

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout      = errors.New("operation timed out")
	ErrRateLimit    = errors.New("rate limit exceeded")
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("service unavailable")
)

// APIError represents an error returned by the messaging platform.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	// RetryAfter is the server-requested wait in seconds (0 when absent).
	RetryAfter int
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// FromTelegram converts a tgbotapi error into an *APIError.
// Errors that did not come from the Bot API are returned unchanged.
func FromTelegram(err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) {
		return err
	}
	return &APIError{
		Service:    "telegram",
		StatusCode: tgErr.Code,
		Message:    tgErr.Message,
		RetryAfter: tgErr.RetryAfter,
		Err:        err,
	}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// RetryAfter returns the server-requested backoff in seconds, or 0.
func RetryAfter(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// IsNotModified reports whether an edit was rejected because nothing changed.
func IsNotModified(err error) bool {
	return hasDescription(err, "message is not modified")
}

// IsMessageGone reports whether the target message no longer exists or
// cannot be deleted by the bot.
func IsMessageGone(err error) bool {
	return hasDescription(err, "message to delete not found") ||
		hasDescription(err, "message can't be deleted")
}

func hasDescription(err error, fragment string) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(strings.ToLower(apiErr.Message), fragment)
	}
	return strings.Contains(strings.ToLower(err.Error()), fragment)
}
