package pipeline

import "errors"

// ErrQueueFull is returned by Enqueue when a stage's buffered channel has
// no room left, mirroring bidengine's queue-full signal.
var ErrQueueFull = errors.New("pipeline: stage queue full")

// ErrVersionConflict is returned by attemptTransition when the document's
// status changed between the read and the write, the same optimistic-
// concurrency signal the teacher's auction OCC update surfaces on a
// version mismatch.
var ErrVersionConflict = errors.New("pipeline: document status changed concurrently")

// ErrIllegalTransition is returned when the requested status change is not
// a legal edge in record.Document's state machine.
var ErrIllegalTransition = errors.New("pipeline: illegal status transition")
