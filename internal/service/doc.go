// Package service contains the dispatcher, the request-side use cases of the
// resize pipeline. It coordinates the status store, the blob store and the
// job queue, and never depends on a concrete implementation of any of them.
//
// The dispatcher is stateless: every call reads or writes through its
// collaborators, so any number of server instances can run side by side.
//
// Errors are sentinel values checked with errors.Is. The API layer maps them
// to HTTP status codes.
package service
