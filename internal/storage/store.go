package storage

import (
	"context"
	"errors"
	"fmt"
)

// Document keys used by the application.
const (
	KeyIntervals      = "intervals"
	KeyTempos         = "tempos"
	KeySessionHistory = "sessionHistory"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store is closed")
)

// Store persists JSON documents keyed by name. Documents are always written
// wholesale.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	Put(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, key string) error

	Close() error
}

// PersistenceError reports a failed load or save. It is never fatal: callers
// log it and keep their last valid state.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence reports whether err carries a *PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
