package module

import (
	"errors"
	"fmt"
)

// ErrAlreadyRunning is returned when an endpoint is assigned to a module that
// has already been launched.
var ErrAlreadyRunning = errors.New("module is already running")

// ConfigurationError reports module settings that are missing or malformed.
// It is raised at construction time, before anything runs.
type ConfigurationError struct {
	Module string
	Type   string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in module '%s' (type '%s'): %v", e.Module, e.Type, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError from a format string.
func Configf(name, typeName, format string, args ...any) error {
	return &ConfigurationError{Module: name, Type: typeName, Err: fmt.Errorf(format, args...)}
}

// Side names an endpoint direction.
type Side string

const (
	Inbox  Side = "inbox"
	Outbox Side = "outbox"
)

// UnsupportedOperationError reports an endpoint assigned to a module kind
// that has no use for it, e.g. an inbox on a pure source.
type UnsupportedOperationError struct {
	Kind Kind
	Side Side
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("a %s module does not accept an %s", e.Kind, e.Side)
}

// TransportError reports an I/O failure in a module's transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// WrapTransport wraps err as a TransportError for op. A nil err stays nil.
func WrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
