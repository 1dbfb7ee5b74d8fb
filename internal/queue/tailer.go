package queue

import (
	"errors"
	"fmt"
	"io"

	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
	"github.com/rzbill/rollq/internal/sparseindex"
)

// Tailer is an independent read cursor. It holds the segment of the cycle it
// is parked in plus a private sparse index it fills in as it scans, so
// repeated seeks into the same segment get cheaper over time. A tailer only
// ever moves forward during reads; crossing into the next populated cycle
// happens automatically when the current segment is exhausted. Not safe for
// concurrent use.
type Tailer struct {
	q *Queue

	h     segment.Handle
	idx   *sparseindex.Index
	cycle int64
	seq   int64
	off   int64
}

// MoveToAddress parks the cursor at the entry the address names, so the next
// ReadNext returns that entry. The cycle is taken from the address's high
// bits; a cycle with no segment fails with ErrSegmentNotFound, and a
// sequence past the segment's written entries fails with ErrEndOfStream.
func (t *Tailer) MoveToAddress(addr rollcycle.Address) error {
	cycle, err := t.q.policy.CycleOf(addr)
	if err != nil {
		return err
	}
	seq := int64(t.q.policy.SequenceOf(addr))
	if t.h == nil || cycle != t.cycle {
		h, err := t.q.store.OpenExisting(cycle)
		if errors.Is(err, segment.ErrNotFound) {
			return fmt.Errorf("cycle %d: %w", cycle, ErrSegmentNotFound)
		}
		if err != nil {
			return fmt.Errorf("open cycle %d: %w", cycle, err)
		}
		t.setSegment(h, cycle)
	}
	return t.seek(seq)
}

// MoveToStart parks the cursor at the very first entry across all segments.
// ErrEndOfStream means nothing has been written yet.
func (t *Tailer) MoveToStart() error {
	cycles, err := t.q.store.ListCycles()
	if err != nil {
		return fmt.Errorf("list cycles: %w", err)
	}
	if len(cycles) == 0 {
		return ErrEndOfStream
	}
	h, err := t.q.store.OpenExisting(cycles[0])
	if err != nil {
		return fmt.Errorf("open cycle %d: %w", cycles[0], err)
	}
	t.setSegment(h, cycles[0])
	return nil
}

func (t *Tailer) setSegment(h segment.Handle, cycle int64) {
	if t.h != nil {
		t.h.Close()
	}
	p := t.q.policy
	t.h = h
	t.idx = sparseindex.New(p.IndexFanout(), p.IndexSpacing(), h.DataStart())
	t.cycle = cycle
	t.seq, t.off = 0, h.DataStart()
}

// seek positions the cursor on seq within the current segment: the sparse
// index supplies the nearest preceding anchor, a forward scan covers the
// rest and drops breadcrumbs as it goes.
func (t *Tailer) seek(seq int64) error {
	startSeq, startOff := t.idx.Lookup(seq)
	end, err := t.h.Len()
	if err != nil {
		return err
	}
	s, o, err := scanFrames(t.h, t.idx, startSeq, startOff, seq, end)
	if err == io.EOF {
		return fmt.Errorf("cycle %d sequence %d not yet written: %w", t.cycle, seq, ErrEndOfStream)
	}
	if err != nil {
		return err
	}
	t.seq, t.off = s, o
	return nil
}

// ReadNext returns the entry under the cursor and advances past it. At the
// end of a segment it probes the store for a later cycle and continues from
// that segment's first entry; ErrEndOfStream means every written entry has
// been consumed, and a later call may succeed once more are appended. An
// unpositioned tailer starts from the very first entry.
func (t *Tailer) ReadNext() ([]byte, error) {
	if t.h == nil {
		if err := t.MoveToStart(); err != nil {
			return nil, err
		}
	}
	for {
		end, err := t.h.Len()
		if err != nil {
			return nil, err
		}
		body, next, err := readFrame(t.h, t.off, end)
		if err == nil {
			if rerr := t.idx.Record(t.seq, t.off); rerr != nil {
				return nil, rerr
			}
			payload, derr := t.q.codec.Decode(body)
			if derr != nil {
				return nil, fmt.Errorf("decode entry at cycle %d seq %d: %w", t.cycle, t.seq, ErrCorruptEntry)
			}
			t.seq, t.off = t.seq+1, next
			return payload, nil
		}
		if err != io.EOF {
			return nil, err
		}
		moved, err := t.advanceCycle()
		if err != nil {
			return nil, err
		}
		if !moved {
			return nil, ErrEndOfStream
		}
	}
}

// NextAddress returns the address ReadNext would consume next. It fails with
// ErrUnpositioned before the first move or read.
func (t *Tailer) NextAddress() (rollcycle.Address, error) {
	if t.h == nil {
		return 0, ErrUnpositioned
	}
	return t.q.policy.Compose(t.cycle, uint64(t.seq)), nil
}

// Cycle returns the cycle the cursor is parked in, or -1 before positioning.
func (t *Tailer) Cycle() int64 { return t.cycle }

// advanceCycle moves the cursor to the start of the next cycle that has a
// segment. It reports false when the current cycle is the newest one.
func (t *Tailer) advanceCycle() (bool, error) {
	cycles, err := t.q.store.ListCycles()
	if err != nil {
		return false, fmt.Errorf("list cycles: %w", err)
	}
	for _, c := range cycles {
		if c <= t.cycle {
			continue
		}
		h, err := t.q.store.OpenExisting(c)
		if errors.Is(err, segment.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("open cycle %d: %w", c, err)
		}
		t.setSegment(h, c)
		return true, nil
	}
	return false, nil
}

// Close releases the cursor's segment handle.
func (t *Tailer) Close() error {
	if t.h == nil {
		return nil
	}
	err := t.h.Close()
	t.h = nil
	return err
}
