package queue

import (
	"fmt"
	"io"
	"sync"

	"github.com/rzbill/rollq/internal/codec"
	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
	"github.com/rzbill/rollq/pkg/log"
)

// Options configure a Queue.
type Options struct {
	// Store provides the segment backend. Required.
	Store segment.Store

	// Policy is the roll policy governing cycle length and addressing.
	// Required.
	Policy rollcycle.Policy

	// EpochMillis offsets cycle numbering; zero means the Unix epoch.
	EpochMillis int64

	// Clock supplies wall time for cycle resolution. Defaults to the
	// system clock.
	Clock rollcycle.Clock

	// Codec transforms payloads on the way in and out. Defaults to the
	// pass-through codec.
	Codec codec.Codec

	// ReadOnly refuses appenders. Tailers work as usual.
	ReadOnly bool

	// Logger receives roll and recovery events. Defaults to the package
	// logger.
	Logger log.Logger
}

// Queue binds a segment store to a roll policy and hands out the appender
// and tailers. A queue owns at most one appender; tailers are unlimited and
// independent.
type Queue struct {
	store    segment.Store
	policy   rollcycle.Policy
	epoch    int64
	clock    rollcycle.Clock
	codec    codec.Codec
	readOnly bool
	logger   log.Logger

	mu       sync.Mutex
	appender *Appender
	closed   bool
}

// Open validates opts and returns a Queue. It touches no segments; the first
// append or tailer move does.
func Open(opts Options) (*Queue, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("queue: store is required")
	}
	if opts.Policy.Name() == "" {
		return nil, fmt.Errorf("queue: policy is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = rollcycle.SystemClock{}
	}
	cdc := opts.Codec
	if cdc == nil {
		cdc = codec.Plain{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger().WithComponent("queue")
	}
	return &Queue{
		store:    opts.Store,
		policy:   opts.Policy,
		epoch:    opts.EpochMillis,
		clock:    clk,
		codec:    cdc,
		readOnly: opts.ReadOnly || opts.Store.ReadOnly(),
		logger:   logger,
	}, nil
}

// Policy returns the roll policy the queue was opened with.
func (q *Queue) Policy() rollcycle.Policy { return q.policy }

// EpochMillis returns the epoch offset the queue was opened with.
func (q *Queue) EpochMillis() int64 { return q.epoch }

// ReadOnly reports whether appends are refused.
func (q *Queue) ReadOnly() bool { return q.readOnly }

// Appender returns the queue's single appender, creating it on first call.
func (q *Queue) Appender() (*Appender, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	if q.readOnly {
		return nil, ErrReadOnly
	}
	if q.appender == nil {
		q.appender = &Appender{q: q, cycle: -1}
	}
	return q.appender, nil
}

// Tailer returns a fresh, unpositioned read cursor.
func (q *Queue) Tailer() (*Tailer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrClosed
	}
	return &Tailer{q: q, cycle: -1}, nil
}

// FirstAddress returns the address of the earliest entry across all
// segments, or ErrEndOfStream if nothing has been written.
func (q *Queue) FirstAddress() (rollcycle.Address, error) {
	cycles, err := q.store.ListCycles()
	if err != nil {
		return 0, fmt.Errorf("list cycles: %w", err)
	}
	for _, c := range cycles {
		n, err := q.countEntries(c)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return q.policy.Compose(c, 0), nil
		}
	}
	return 0, ErrEndOfStream
}

// LastAddress returns the address of the newest entry across all segments,
// or ErrEndOfStream if nothing has been written.
func (q *Queue) LastAddress() (rollcycle.Address, error) {
	cycles, err := q.store.ListCycles()
	if err != nil {
		return 0, fmt.Errorf("list cycles: %w", err)
	}
	for i := len(cycles) - 1; i >= 0; i-- {
		n, err := q.countEntries(cycles[i])
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return q.policy.Compose(cycles[i], uint64(n-1)), nil
		}
	}
	return 0, ErrEndOfStream
}

func (q *Queue) countEntries(cycle int64) (int64, error) {
	h, err := q.store.OpenExisting(cycle)
	if err != nil {
		return 0, fmt.Errorf("open cycle %d: %w", cycle, err)
	}
	defer h.Close()
	end, err := h.Len()
	if err != nil {
		return 0, err
	}
	n, _, err := scanFrames(h, nil, 0, h.DataStart(), -1, end)
	if err != nil && err != io.EOF {
		return 0, err
	}
	return n, nil
}

// Close releases the appender. Tailers hold their own segment handles and
// keep working until closed individually.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	if q.appender != nil {
		return q.appender.Close()
	}
	return nil
}
