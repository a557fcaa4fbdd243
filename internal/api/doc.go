// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts the resize Dispatcher to a small JSON
// surface: create a job, start a resize, query a status.
package api
