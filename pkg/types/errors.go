package types

import (
	"errors"
	"fmt"
)

// Record validation errors.
var (
	ErrInvalidDate  = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidOwner = errors.New("owner must not be empty")
	ErrInvalidLabel = errors.New("label must not be empty")
)

// Store lifecycle errors.
var (
	ErrStoreDetached   = errors.New("store is detached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Failure classes. StorageError and DeliveryError values match these with
// errors.Is.
var (
	ErrStorage        = errors.New("storage failure")
	ErrDelivery       = errors.New("delivery failure")
	ErrSchedulerFault = errors.New("scheduler fault")
)

// StorageError reports a persistence failure during a query or mutation.
// A failed mutation has been rolled back when this error is returned.
type StorageError struct {
	Op  string // Operation name, e.g. "add" or "list".
	Err error
}

// NewStorageError wraps err for op. A nil err yields nil.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) true for every StorageError.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
