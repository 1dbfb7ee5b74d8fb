package queue

import "errors"

var (
	// ErrCapacityExceeded is returned when an append would push the active
	// cycle past the policy's per-cycle entry limit.
	ErrCapacityExceeded = errors.New("queue: cycle capacity exceeded")

	// ErrNoPriorAppend is returned by LastAddressAppended before the
	// appender has written anything in this process.
	ErrNoPriorAppend = errors.New("queue: no prior append")

	// ErrSegmentNotFound is returned when an address names a cycle for
	// which no segment exists.
	ErrSegmentNotFound = errors.New("queue: segment not found")

	// ErrEndOfStream is returned when a tailer has consumed every entry
	// currently written. It is recoverable: a later call may succeed once
	// an appender writes more.
	ErrEndOfStream = errors.New("queue: end of stream")

	// ErrReadOnly is returned when an appender is requested from a queue
	// opened read-only.
	ErrReadOnly = errors.New("queue: read-only")

	// ErrCorruptEntry is returned when a fully written frame fails its
	// checksum or cannot be decoded.
	ErrCorruptEntry = errors.New("queue: corrupt entry")

	// ErrUnpositioned is returned when a tailer operation requires a
	// position and none has been established yet.
	ErrUnpositioned = errors.New("queue: tailer not positioned")

	// ErrClosed is returned when operating on a closed queue.
	ErrClosed = errors.New("queue: closed")
)
