package storage

import (
	"errors"
	"fmt"
)

// StorageError marks ordinary read/write failures of the engine. Callers
// decide how to react; the engine never terminates the process on them.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// ErrCorruptSnapshot is returned by Restore when the blob cannot be
// decoded. The existing key space is left untouched.
var ErrCorruptSnapshot = errors.New("corrupt snapshot blob")
