// Package worker runs the resize pipeline for queued jobs.
//
// For every delivered message the worker reads the job's status record,
// marks it Resizing, runs the transform, records Done with the final URL and
// only then acknowledges the message. Any failure before the acknowledgment
// leaves the message to be redelivered once its visibility window expires,
// and the monotonic status writes make the re-run converge on Done.
package worker
