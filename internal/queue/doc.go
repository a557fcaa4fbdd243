// Package queue defines the at-least-once job queue contract shared by the
// dispatcher and the worker, and an in-process implementation of it.
//
// A message body is nothing but a job ID. Every delivery carries a receipt
// handle that is valid only for that delivery and only while its visibility
// window is open; a message that is not acknowledged in time becomes
// deliverable again. Durable implementations live under internal/platform.
package queue
