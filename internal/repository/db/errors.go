package db

import "errors"

// ErrNotFound is returned when a conversation does not exist.
// Check with errors.Is(err, db.ErrNotFound).
var ErrNotFound = errors.New("conversation not found")

// StorageError wraps any failure of the underlying storage engine. The
// operation it covers has been rolled back entirely.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return "storage: " + e.Op + ": " + e.Cause.Error()
	}
	return "storage: " + e.Op
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// IsStorageError reports whether err is (or wraps) a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
