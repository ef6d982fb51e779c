package storage

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaTooNew = errors.New("storage: schema version newer than code")
)

// StorageError reports a connection, schema, or query failure. Driver errors
// are kept as Err so callers can still match them with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("storage: %s", e.Op)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func storageErrf(op, format string, args ...any) error {
	return &StorageError{Op: op, Err: fmt.Errorf(format, args...)}
}
