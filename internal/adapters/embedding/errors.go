package embedding

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an embedding failure by how callers should react.
type Kind int

const (
	// KindConfig means retrying cannot help: bad credentials or endpoint.
	KindConfig Kind = iota + 1
	// KindTransient means the call may succeed later: throttling, 5xx, timeouts.
	KindTransient
	// KindFormat means the service answered but the payload is unusable, or it
	// rejected this particular input (400, 413, 422).
	KindFormat
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindFormat:
		return "format"
	default:
		return "unknown"
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrConfig    = errors.New("embedding configuration error")
	ErrTransient = errors.New("embedding service unavailable")
	ErrFormat    = errors.New("embedding response malformed")
)

// Causes wrapped inside *Error.
var (
	ErrEmptyInput       = errors.New("input text is empty")
	ErrMissingToken     = errors.New("api token is not configured")
	ErrMissingEndpoint  = errors.New("endpoint is not configured")
	ErrInvalidDimension = errors.New("unexpected embedding dimension")
)

// Error is returned by every Embedder failure. Its message never contains the
// API token.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("embedding ")
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality against ErrConfig, ErrTransient and ErrFormat.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfig:
		return e.Kind == KindConfig
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrFormat:
		return e.Kind == KindFormat
	}
	return false
}

// KindOf returns the Kind of err, or 0 when err is not an embedding error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

const redacted = "[REDACTED]"

// redactErr rewrites err's message with every occurrence of secret masked.
func redactErr(err error, secret string) error {
	if err == nil || secret == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, secret) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, secret, redacted))
}
