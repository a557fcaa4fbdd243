package worker

import "errors"

// Failure classes reported to the error handler. All of them leave the
// message unacknowledged.
var (
	// ErrStatusStore indicates the status store could not be read or written.
	ErrStatusStore = errors.New("status store failure")

	// ErrQueue indicates a dequeue or acknowledge call failed.
	ErrQueue = errors.New("queue failure")

	// ErrTransformFailed indicates the transform returned an error or ran
	// past its timeout.
	ErrTransformFailed = errors.New("transform failed")
)
