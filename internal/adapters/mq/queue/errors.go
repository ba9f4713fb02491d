package queue

import "errors"

// Sentinel kinds for enqueue failures.
var (
	ErrQueueFull   = errors.New("plan queue is full")
	ErrQueueClosed = errors.New("plan queue is closed")
)
