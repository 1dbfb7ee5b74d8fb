package sparseindex

import (
	"errors"
	"fmt"
)

// ErrIndexFull reports a sequence beyond what fanout*fanout slots can cover.
// A correctly sized roll policy makes this unreachable: cycle capacity is
// capped at fanout*fanout*spacing entries.
var ErrIndexFull = errors.New("sparseindex: sequence beyond index capacity")

const noBlock = int32(-1)

// Index is the per-segment sparse lookup structure. Construct with New; the
// zero value is unusable.
type Index struct {
	fanout    int
	spacing   int64
	dataStart int64

	root  []int32 // root slot -> arena block number, noBlock if absent
	arena []int64 // leaf blocks, fanout offsets each

	// last is the greatest recorded breadcrumb sequence, -1 before the
	// first record. Breadcrumbs are recorded in append order, so every
	// spacing-multiple at or below last is populated.
	last int64
}

// New builds an empty index for a segment whose data region starts at
// dataStart. Fanout and spacing come from the roll policy and are assumed to
// be powers of two.
func New(fanout, spacing int, dataStart int64) *Index {
	return &Index{
		fanout:    fanout,
		spacing:   int64(spacing),
		dataStart: dataStart,
		root:      nil, // allocated on first record
		last:      -1,
	}
}

// Spacing returns the breadcrumb interval in entries.
func (x *Index) Spacing() int64 { return x.spacing }

// DataStart returns the offset lookups fall back to before any breadcrumb.
func (x *Index) DataStart() int64 { return x.dataStart }

// Record stores the byte offset of the entry with the given
// sequence-in-segment. Only spacing multiples leave a breadcrumb; other
// sequences are ignored so callers can feed every entry through. Recording
// the same slot again with a later offset overwrites it; nothing ever
// shrinks.
func (x *Index) Record(seq, offset int64) error {
	if seq < 0 || seq%x.spacing != 0 {
		return nil
	}
	slot := seq / x.spacing
	rootSlot := slot / int64(x.fanout)
	if rootSlot >= int64(x.fanout) {
		return fmt.Errorf("%w: seq %d needs root slot %d of %d", ErrIndexFull, seq, rootSlot, x.fanout)
	}
	if x.root == nil {
		x.root = make([]int32, x.fanout)
		for i := range x.root {
			x.root[i] = noBlock
		}
	}
	block := x.root[rootSlot]
	if block == noBlock {
		block = int32(len(x.arena) / x.fanout)
		x.root[rootSlot] = block
		leaf := make([]int64, x.fanout)
		for i := range leaf {
			leaf[i] = -1
		}
		x.arena = append(x.arena, leaf...)
	}
	x.arena[int(block)*x.fanout+int(slot)%x.fanout] = offset
	if seq > x.last {
		x.last = seq
	}
	return nil
}

// Lookup returns the starting point for locating the entry with the given
// sequence: the sequence and byte offset of the greatest breadcrumb at or
// before it, or (0, dataStart) when no breadcrumb helps. The returned offset
// never lies past the target entry; the caller scans forward from it.
func (x *Index) Lookup(seq int64) (startSeq, offset int64) {
	if seq < 0 || x.last < 0 {
		return 0, x.dataStart
	}
	crumb := seq - seq%x.spacing
	if crumb > x.last {
		crumb = x.last
	}
	for ; crumb >= 0; crumb -= x.spacing {
		if off, ok := x.offsetAt(crumb); ok {
			return crumb, off
		}
	}
	return 0, x.dataStart
}

func (x *Index) offsetAt(seq int64) (int64, bool) {
	if x.root == nil {
		return 0, false
	}
	slot := seq / x.spacing
	rootSlot := slot / int64(x.fanout)
	if rootSlot >= int64(x.fanout) {
		return 0, false
	}
	block := x.root[rootSlot]
	if block == noBlock {
		return 0, false
	}
	off := x.arena[int(block)*x.fanout+int(slot)%x.fanout]
	if off < 0 {
		return 0, false
	}
	return off, true
}

// Blocks reports how many leaf blocks have been allocated, for diagnostics.
func (x *Index) Blocks() int { return len(x.arena) / x.fanout }
