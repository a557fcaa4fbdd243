// Package domain contains the core entities of the resize pipeline: the Job
// status record and the ResizeStatus state machine that every store write
// must respect. It is independent of any storage or transport.
package domain
