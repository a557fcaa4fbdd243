package service

import "errors"

// Sentinel errors returned by the Dispatcher. Store errors such as
// store.ErrNotFound are passed through wrapped.
var (
	// ErrUnsupportedMimeType indicates the client asked to upload a format
	// the transform cannot process. API layer maps this to 400.
	ErrUnsupportedMimeType = errors.New("unsupported mime type")

	// ErrInvalidJobID indicates a job ID that is empty or malformed.
	// API layer maps this to 400.
	ErrInvalidJobID = errors.New("invalid job id")
)

// DispatcherError records which dispatcher operation failed.
type DispatcherError struct {
	Operation string
	Message   string
	Err       error
}

func (e *DispatcherError) Error() string {
	if e.Err != nil {
		return "dispatcher " + e.Operation + " failed: " + e.Message + ": " + e.Err.Error()
	}
	return "dispatcher " + e.Operation + " failed: " + e.Message
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *DispatcherError) Unwrap() error {
	return e.Err
}

// NewDispatcherError creates a new DispatcherError.
func NewDispatcherError(operation, message string, err error) *DispatcherError {
	return &DispatcherError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
