// Package blob defines the object store used for uploaded inputs and
// resized outputs, the key layout shared by every component, and an
// in-process implementation.
package blob

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("blob not found")

const (
	inputPrefix  = "input/"
	outputPrefix = "output/"
)

// InputKey is where a client uploads the source image for jobID.
func InputKey(jobID string) string {
	return inputPrefix + jobID
}

// OutputKey is where the worker writes the resized image for jobID.
func OutputKey(jobID string) string {
	return outputPrefix + jobID
}

// Store is an object store with pre-signed uploads.
type Store interface {
	// PresignUpload returns a URL a client can PUT an object to without
	// further credentials, valid for expiry.
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)

	// Get returns the object body and its content type.
	Get(ctx context.Context, key string) ([]byte, string, error)

	// Put stores data under key and returns a reference clients can fetch.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
