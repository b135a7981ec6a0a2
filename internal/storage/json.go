package storage

import (
	"context"
	"encoding/json"
	"errors"
)

// LoadJSON decodes the document at key into a T. A missing document yields
// ErrNotFound wrapped in a *PersistenceError.
func LoadJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var out T

	data, err := s.Get(ctx, key)
	if err != nil {
		return out, &PersistenceError{Op: "load", Key: key, Err: err}
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, &PersistenceError{Op: "decode", Key: key, Err: err}
	}
	return out, nil
}

// SaveJSON encodes value and writes it at key.
func SaveJSON(ctx context.Context, s Store, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &PersistenceError{Op: "encode", Key: key, Err: err}
	}
	if err := s.Put(ctx, key, data); err != nil {
		return &PersistenceError{Op: "save", Key: key, Err: err}
	}
	return nil
}

// IsDecode reports whether err came from a document that exists but does not
// parse.
func IsDecode(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe) && pe.Op == "decode"
}

// IsNotFound reports whether err means the document does not exist yet.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
