package archive

import (
	"errors"
	"fmt"
)

// Failure classes. Every *Error matches exactly one of them with errors.Is.
var (
	// ErrTransport covers unreachable hosts, timeouts and non-2xx responses.
	ErrTransport = errors.New("archive transport failure")
	// ErrPayload covers responses that do not have the expected shape.
	ErrPayload = errors.New("archive payload failure")
)

// Kind tells which class of failure an Error belongs to.
type Kind int

const (
	KindTransport Kind = iota
	KindPayload
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Error describes a failed archive request.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error fetching %s: HTTP status %d", e.Kind, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrPayload:
		return e.Kind == KindPayload
	}
	return false
}
