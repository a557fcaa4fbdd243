// Package bootstrap opens the configured backends shared by the server and
// worker binaries: the status store, the job queue and the blob store.
package bootstrap
