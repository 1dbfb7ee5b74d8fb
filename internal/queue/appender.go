package queue

import (
	"context"
	"fmt"
	"io"

	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
	"github.com/rzbill/rollq/internal/sparseindex"
	"github.com/rzbill/rollq/pkg/log"
)

// Appender is the queue's single writer. It tracks the active cycle's
// segment, the next sequence number and the end offset, and rolls into a new
// segment when the clock crosses a cycle boundary. Not safe for concurrent
// use; serialize calls externally if needed.
type Appender struct {
	q *Queue

	h        segment.Handle
	idx      *sparseindex.Index
	cycle    int64
	nextSeq  int64
	writeOff int64

	last    rollcycle.Address
	hasLast bool
	closed  bool
}

// Append frames the payload, writes it at the tail of the current cycle's
// segment and returns the entry's address. The cycle is resolved from the
// clock on every call; crossing a boundary opens (or reopens) that cycle's
// segment before writing. Appending past the policy's per-cycle capacity
// fails with ErrCapacityExceeded and writes nothing.
func (a *Appender) Append(ctx context.Context, payload []byte) (rollcycle.Address, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if a.closed {
		return 0, ErrClosed
	}
	cycle := rollcycle.CycleAt(a.q.clock.NowMillis(), a.q.epoch, a.q.policy)
	if a.h == nil || cycle > a.cycle {
		if err := a.roll(cycle); err != nil {
			return 0, err
		}
	}
	// A clock that stepped backwards keeps writing into the cycle already
	// open; addresses must never regress.
	if uint64(a.nextSeq) >= a.q.policy.MaxEntriesPerCycle() {
		return 0, fmt.Errorf("cycle %d at %d entries: %w", a.cycle, a.nextSeq, ErrCapacityExceeded)
	}
	frame := encodeFrame(a.q.codec.Encode(payload))
	newEnd, err := a.h.AppendAt(a.writeOff, frame)
	if err != nil {
		return 0, fmt.Errorf("append to cycle %d: %w", a.cycle, err)
	}
	if err := a.idx.Record(a.nextSeq, a.writeOff); err != nil {
		return 0, err
	}
	addr := a.q.policy.Compose(a.cycle, uint64(a.nextSeq))
	a.writeOff = newEnd
	a.nextSeq++
	a.last, a.hasLast = addr, true
	return addr, nil
}

// roll closes the current segment and opens the one for cycle. A segment
// left behind by an earlier process is scanned to its end so the appender
// resumes at the right sequence instead of clobbering entries.
func (a *Appender) roll(cycle int64) error {
	h, err := a.q.store.OpenOrCreate(cycle)
	if err != nil {
		return fmt.Errorf("open cycle %d: %w", cycle, err)
	}
	p := a.q.policy
	idx := sparseindex.New(p.IndexFanout(), p.IndexSpacing(), h.DataStart())
	end, err := h.Len()
	if err != nil {
		h.Close()
		return err
	}
	seq, off, err := scanFrames(h, idx, 0, h.DataStart(), -1, end)
	if err != nil && err != io.EOF {
		h.Close()
		return fmt.Errorf("recover cycle %d: %w", cycle, err)
	}
	if a.h != nil {
		if cerr := a.h.Close(); cerr != nil {
			a.q.logger.WithError(cerr).Warn("closing rolled segment")
		}
		a.q.logger.Info("rolled cycle",
			log.Int64("from", a.cycle), log.Int64("to", cycle), log.Int64("resume_seq", seq))
	}
	a.h, a.idx = h, idx
	a.cycle, a.nextSeq, a.writeOff = cycle, seq, off
	return nil
}

// LastAddressAppended returns the address of the most recent append made by
// this appender, or ErrNoPriorAppend if it has not written yet.
func (a *Appender) LastAddressAppended() (rollcycle.Address, error) {
	if !a.hasLast {
		return 0, ErrNoPriorAppend
	}
	return a.last, nil
}

// Cycle returns the cycle the appender last wrote into, or -1 before the
// first append.
func (a *Appender) Cycle() int64 { return a.cycle }

// Sync flushes the active segment to stable storage.
func (a *Appender) Sync() error {
	if a.h == nil {
		return nil
	}
	return a.h.Sync()
}

// Close syncs and releases the active segment.
func (a *Appender) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.h == nil {
		return nil
	}
	if err := a.h.Sync(); err != nil {
		a.h.Close()
		return err
	}
	err := a.h.Close()
	a.h = nil
	return err
}
