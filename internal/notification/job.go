// Package notification implements the durable notification queue on
// RabbitMQ: producers enqueue jobs, a single worker consumes them with
// manual acknowledgement and reschedules failed jobs through a delay
// queue with exponential backoff until the attempt cap is reached.
package notification

import (
	"encoding/json"
	"time"
)

// JobTicketPurchased is the job name of a purchase confirmation.
const JobTicketPurchased = "ticket-purchased"

// BackoffType selects how the retry delay grows.
type BackoffType string

const (
	BackoffExponential BackoffType = "exponential"
	BackoffFixed       BackoffType = "fixed"
)

// Backoff is the retry delay policy of a job.  Delay is in milliseconds.
type Backoff struct {
	Type  BackoffType `json:"type"`
	Delay int64       `json:"delay"`
}

// Wait returns the delay before the next attempt once attemptsMade
// attempts have failed: Delay for the first retry, doubling afterwards
// for exponential backoff.
func (b Backoff) Wait(attemptsMade int) time.Duration {
	base := time.Duration(b.Delay) * time.Millisecond
	if base <= 0 || attemptsMade < 1 {
		return 0
	}
	if b.Type != BackoffExponential {
		return base
	}
	shift := attemptsMade - 1
	if shift > 20 {
		shift = 20
	}
	return base << uint(shift)
}

// JobOptions carries the retry policy with the job so that a worker
// honours the policy chosen by the producer.
type JobOptions struct {
	Attempts int     `json:"attempts"`
	Backoff  Backoff `json:"backoff"`
}

// Job is the durable message exchanged over the broker.
//
// Fields:
//
//	ID           – unique job id (UUID).
//	Name         – job kind, used to pick the handler.
//	Data         – JSON payload, decoded by the handler.
//	AttemptsMade – failed processing attempts so far.
//	Opts         – retry policy.
//	Timestamp    – when the job was first enqueued.
type Job struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Data         json.RawMessage `json:"data"`
	AttemptsMade int             `json:"attemptsMade"`
	Opts         JobOptions      `json:"opts"`
	Timestamp    time.Time       `json:"timestamp"`
}

// maxAttempts is Opts.Attempts with a floor of one.
func (j *Job) maxAttempts() int {
	if j.Opts.Attempts < 1 {
		return 1
	}
	return j.Opts.Attempts
}
