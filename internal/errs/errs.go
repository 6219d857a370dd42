// Package errs defines the error kinds shared by the socksrelay packages.
//
// Every error produced while parsing SOCKS5 or tunnel bytes, moving data, or
// loading configuration carries exactly one kind, so callers can classify it
// with errors.Is regardless of how many layers wrapped it.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrProtocol marks malformed SOCKS5 or tunnel header bytes.
	ErrProtocol = errors.New("protocol error")
	// ErrIO marks a transport read, write or connect failure.
	ErrIO = errors.New("i/o error")
	// ErrConfig marks an unusable configuration.
	ErrConfig = errors.New("config error")
	// ErrEncoding marks invalid UTF-8 in a domain name or tunnel header.
	ErrEncoding = errors.New("encoding error")
)

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}

func newKind(kind, cause error, format string, args ...any) error {
	return errors.WithStack(&kindError{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause})
}

// Protocolf returns an ErrProtocol error with the formatted message.
func Protocolf(format string, args ...any) error {
	return newKind(ErrProtocol, nil, format, args...)
}

// Protocol wraps cause as an ErrProtocol error.
func Protocol(cause error, msg string) error {
	return newKind(ErrProtocol, cause, "%s", msg)
}

// Encodingf returns an ErrEncoding error with the formatted message.
func Encodingf(format string, args ...any) error {
	return newKind(ErrEncoding, nil, format, args...)
}

// Configf returns an ErrConfig error with the formatted message.
func Configf(format string, args ...any) error {
	return newKind(ErrConfig, nil, format, args...)
}

// Config wraps cause as an ErrConfig error.
func Config(cause error, msg string) error {
	return newKind(ErrConfig, cause, "%s", msg)
}

// IO wraps cause as an ErrIO error. A nil cause yields nil.
func IO(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return newKind(ErrIO, cause, "%s", msg)
}

// Kind reports which of the error kinds err carries, or nil if none.
func Kind(err error) error {
	for _, k := range []error{ErrProtocol, ErrEncoding, ErrConfig, ErrIO} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// StackTrace returns the stack recorded where err's kind was attached, or
// nil if err carries none.
func StackTrace(err error) errors.StackTrace {
	var st stackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return nil
}
