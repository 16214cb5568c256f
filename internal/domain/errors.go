package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrConfig         = errors.New("invalid configuration")
	ErrRemote         = errors.New("remote call failed")
	ErrStoreWrite     = errors.New("store write failed")
	ErrSyncInProgress = errors.New("sync already in progress")
)

// Kind is the machine-checkable error category reported to callers.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConfig         Kind = "config"
	KindRemote         Kind = "remote"
	KindStoreWrite     Kind = "store_write"
	KindSyncInProgress Kind = "sync_in_progress"
	KindInternal       Kind = "internal"
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrSyncInProgress):
		return KindSyncInProgress
	case errors.Is(err, ErrRemote):
		return KindRemote
	case errors.Is(err, ErrStoreWrite):
		return KindStoreWrite
	default:
		return KindInternal
	}
}

// ValidationError reports a caller-supplied value that violates a precondition.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NotFoundError reports a referenced external id that does not exist locally.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource string, id interface{}) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// ConfigError reports missing or invalid remote configuration.
type ConfigError struct {
	Missing []string
	Message string
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("remote configuration incomplete: missing %s", strings.Join(e.Missing, ", "))
	}
	return "remote configuration invalid: " + e.Message
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// RemoteError reports a transport or protocol failure talking to the system-of-record.
// Temporary is set for failures worth retrying (network, timeout, 5xx).
type RemoteError struct {
	Model     string
	Method    string
	Message   string
	Temporary bool
	Err       error
}

func (e *RemoteError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("remote %s.%s: %s", e.Model, e.Method, e.Message)
	}
	return "remote: " + e.Message
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// StoreWriteError reports a local durability failure. The enclosing unit of work is rolled back.
type StoreWriteError struct {
	Op     string
	Entity string
	Err    error
}

func (e *StoreWriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("failed to %s %s", e.Op, e.Entity)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreWriteError) Unwrap() error { return e.Err }

func (e *StoreWriteError) Is(target error) bool { return target == ErrStoreWrite }

// NewStoreWriteError creates a new StoreWriteError
func NewStoreWriteError(op, entity string, err error) *StoreWriteError {
	return &StoreWriteError{Op: op, Entity: entity, Err: err}
}
