package domain

import "time"

// RequestRecord is the per-request metrics row emitted by the pipeline's
// finalize step, on both the success and the error path.
type RequestRecord struct {
	RequestID string
	Action    string
	Method    string
	Path      string
	Status    int
	ErrorName string
	Duration  time.Duration
	StartedAt time.Time
}
