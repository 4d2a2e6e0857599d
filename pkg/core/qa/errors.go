package qa

import (
	"errors"
	"fmt"
)

var (
	// ErrAnalysisUnavailable is returned when the answer model could not be
	// reached or gave no usable answer. It wraps the underlying *llm.ServiceError.
	ErrAnalysisUnavailable = errors.New("analysis service temporarily unavailable")
	// ErrInvalidSource is returned for an unknown context source.
	ErrInvalidSource = errors.New("unknown context source")
	// ErrMissingFilingIDs is returned when scoped mode is asked without filing ids.
	ErrMissingFilingIDs = errors.New("scoped questions need at least one filing id")
	// ErrEmptyTitle is returned when renaming to a blank title.
	ErrEmptyTitle = errors.New("title is empty")
)

// StoreError wraps a filing store or conversation store failure. Callers show
// a generic message; the wrapped error is for logs.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
