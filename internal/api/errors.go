package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind buckets a failure for user-facing handling.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindClient
	KindServer
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

var (
	// ErrNetwork wraps failures where no response was received.
	ErrNetwork = errors.New("network error")
	// ErrConflict matches any 409 response through errors.Is.
	ErrConflict = errors.New("already applied")
	// ErrValidation is wrapped by local input errors that never reach the network.
	ErrValidation = errors.New("invalid input")
)

// Error is a non-2xx response from the remote API.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *Error) Is(target error) bool {
	return target == ErrConflict && e.Status == http.StatusConflict
}

// Classify maps err onto the failure taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, ErrValidation) {
		return KindValidation
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusConflict:
			return KindConflict
		case apiErr.Status >= 400 && apiErr.Status < 500:
			return KindClient
		case apiErr.Status >= 500:
			return KindServer
		}
		return KindUnknown
	}
	if errors.Is(err, ErrNetwork) {
		return KindNetwork
	}
	return KindUnknown
}

// IsConflict reports whether err is the "already applied" signal.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// ServerMessage returns the message the server attached to err, if any.
func ServerMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func networkError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
	}
	return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
}
