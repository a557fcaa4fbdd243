// Package store defines the persistence contract for job status records.
// The interfaces abstract the underlying database so the dispatcher and the
// worker stay independent of a particular storage technology.
package store
