// Package redisqueue implements queue.JobQueue on a Redis Stream read
// through a consumer group.
//
// A delivery is an entry in the group's pending entries list. XREADGROUP
// hands out new entries and XAUTOCLAIM takes back entries whose consumer
// stayed silent for longer than the visibility timeout. Every claim bumps
// the entry's delivery counter and changes its owner, so the receipt handle
// records the entry ID, that counter and the consumer. A handle from an
// earlier delivery, or one whose window has elapsed, no longer matches and
// Acknowledge reports queue.ErrInvalidReceipt.
package redisqueue
