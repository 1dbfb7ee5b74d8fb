// Package history walks every entry still on disk and aggregates per-cycle
// statistics. It reads through a regular tailer, so it works equally from
// the writing process and from a read-only one.
package history

import (
	"errors"
	"fmt"

	"github.com/rzbill/rollq/internal/queue"
	"github.com/rzbill/rollq/internal/rollcycle"
)

// CycleSummary aggregates one populated cycle.
type CycleSummary struct {
	Cycle        int64             `json:"cycle"`
	Segment      string            `json:"segment"`
	Entries      int64             `json:"entries"`
	PayloadBytes int64             `json:"payloadBytes"`
	FirstAddress rollcycle.Address `json:"firstAddress"`
	LastAddress  rollcycle.Address `json:"lastAddress"`
}

// Summary covers the whole queue, oldest cycle first.
type Summary struct {
	Cycles       []CycleSummary `json:"cycles"`
	TotalEntries int64          `json:"totalEntries"`
}

// Reader walks a queue's entries from the very first address.
type Reader struct {
	q *queue.Queue
}

// NewReader returns a Reader over q.
func NewReader(q *queue.Queue) *Reader { return &Reader{q: q} }

// Each visits every entry oldest-first. Returning an error from fn stops the
// walk and surfaces that error.
func (r *Reader) Each(fn func(addr rollcycle.Address, payload []byte) error) error {
	tl, err := r.q.Tailer()
	if err != nil {
		return err
	}
	defer tl.Close()
	if err := tl.MoveToStart(); err != nil {
		if errors.Is(err, queue.ErrEndOfStream) {
			return nil
		}
		return err
	}
	for {
		addr, err := tl.NextAddress()
		if err != nil {
			return err
		}
		payload, err := tl.ReadNext()
		if errors.Is(err, queue.ErrEndOfStream) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read at %v: %w", addr, err)
		}
		if err := fn(addr, payload); err != nil {
			return err
		}
	}
}

// Summary walks the queue once and returns per-cycle entry counts, payload
// byte totals and address ranges.
func (r *Reader) Summary() (Summary, error) {
	var (
		sum    Summary
		policy = r.q.Policy()
		epoch  = r.q.EpochMillis()
	)
	err := r.Each(func(addr rollcycle.Address, payload []byte) error {
		cycle, err := policy.CycleOf(addr)
		if err != nil {
			return err
		}
		if n := len(sum.Cycles); n == 0 || sum.Cycles[n-1].Cycle != cycle {
			sum.Cycles = append(sum.Cycles, CycleSummary{
				Cycle:        cycle,
				Segment:      policy.SegmentName(cycle, epoch),
				FirstAddress: addr,
			})
		}
		cs := &sum.Cycles[len(sum.Cycles)-1]
		cs.Entries++
		cs.PayloadBytes += int64(len(payload))
		cs.LastAddress = addr
		sum.TotalEntries++
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return sum, nil
}
