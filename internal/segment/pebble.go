package segment

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/rollq/internal/storage/pebble"
)

// Pebble keyspace, lexicographically sortable:
// - seg/{cycle_be8}/m              (segment end offset)
// - seg/{cycle_be8}/c/{off_be8}    (chunk written at off)

var (
	segPrefix   = []byte("seg/")
	metaSuffix  = []byte("/m")
	chunkSeg    = []byte("/c/")
	errNoChunk  = errors.New("segment: missing chunk")
	errBadChunk = errors.New("segment: chunk does not cover offset")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func keySegMeta(cycle int64) []byte {
	k := make([]byte, 0, 16)
	k = append(k, segPrefix...)
	k = appendBE8(k, uint64(cycle))
	k = append(k, metaSuffix...)
	return k
}

func keySegChunk(cycle int64, off uint64) []byte {
	k := make([]byte, 0, 24)
	k = append(k, segPrefix...)
	k = appendBE8(k, uint64(cycle))
	k = append(k, chunkSeg...)
	k = appendBE8(k, off)
	return k
}

// PebbleStore keeps segment bytes in a Pebble database, one chunk per
// append. Pebble's own directory lock provides writer exclusivity.
type PebbleStore struct {
	db       *pebblestore.DB
	readOnly bool
}

// NewPebbleStore wraps an open database as a segment store. ReadOnly may be
// stricter than the database's own mode but not looser.
func NewPebbleStore(db *pebblestore.DB, readOnly bool) (*PebbleStore, error) {
	if db == nil {
		return nil, errors.New("segment: nil pebble db")
	}
	if db.ReadOnly() && !readOnly {
		return nil, errors.New("segment: writable store over read-only db")
	}
	return &PebbleStore{db: db, readOnly: readOnly}, nil
}

// ReadOnly implements Store.
func (s *PebbleStore) ReadOnly() bool { return s.readOnly }

// OpenOrCreate implements Store.
func (s *PebbleStore) OpenOrCreate(cycle int64) (Handle, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	if _, err := s.db.Get(keySegMeta(cycle)); err != nil {
		if !errors.Is(err, pebblestore.ErrNotFound) {
			return nil, fmt.Errorf("segment: read meta: %w", err)
		}
		var zero [8]byte
		if err := s.db.Set(keySegMeta(cycle), zero[:]); err != nil {
			return nil, fmt.Errorf("segment: create cycle %d: %w", cycle, err)
		}
	}
	return &pebbleHandle{store: s, cycle: cycle}, nil
}

// OpenExisting implements Store.
func (s *PebbleStore) OpenExisting(cycle int64) (Handle, error) {
	if _, err := s.db.Get(keySegMeta(cycle)); err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, fmt.Errorf("%w: cycle %d", ErrNotFound, cycle)
		}
		return nil, fmt.Errorf("segment: read meta: %w", err)
	}
	return &pebbleHandle{store: s, cycle: cycle, readOnly: true}, nil
}

// ListCycles implements Store.
func (s *PebbleStore) ListCycles() ([]int64, error) {
	upper := append(append([]byte(nil), segPrefix...), 0xff)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: segPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var cycles []int64
	for ok := iter.First(); ok; ok = iter.Next() {
		key := iter.Key()
		if !bytes.HasSuffix(key, metaSuffix) || len(key) != len(segPrefix)+8+len(metaSuffix) {
			continue
		}
		cycles = append(cycles, int64(binary.BigEndian.Uint64(key[len(segPrefix):len(segPrefix)+8])))
	}
	return cycles, nil
}

// Close implements Store. The wrapped database is owned by the caller.
func (s *PebbleStore) Close() error { return nil }

func (s *PebbleStore) segmentEnd(cycle int64) (int64, error) {
	meta, err := s.db.Get(keySegMeta(cycle))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return 0, fmt.Errorf("%w: cycle %d", ErrNotFound, cycle)
		}
		return 0, err
	}
	if len(meta) < 8 {
		return 0, fmt.Errorf("segment: cycle %d meta truncated", cycle)
	}
	return int64(binary.BigEndian.Uint64(meta[:8])), nil
}

type pebbleHandle struct {
	store    *PebbleStore
	cycle    int64
	readOnly bool
}

func (h *pebbleHandle) Cycle() int64 { return h.cycle }

func (h *pebbleHandle) DataStart() int64 { return 0 }

func (h *pebbleHandle) Len() (int64, error) { return h.store.segmentEnd(h.cycle) }

func (h *pebbleHandle) ReadAt(p []byte, off int64) (int, error) {
	end, err := h.Len()
	if err != nil {
		return 0, err
	}
	if off >= end {
		return 0, io.EOF
	}
	want := int64(len(p))
	avail := end - off
	n := want
	if avail < n {
		n = avail
	}

	lower := keySegChunk(h.cycle, 0)
	upper := keySegChunk(h.cycle, ^uint64(0))
	iter, err := h.store.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: append(upper, 0x00)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	filled := int64(0)
	for filled < n {
		cur := off + filled
		// Greatest chunk starting at or before cur.
		if !iter.SeekLT(keySegChunk(h.cycle, uint64(cur)+1)) {
			return int(filled), fmt.Errorf("%w: cycle %d off %d", errNoChunk, h.cycle, cur)
		}
		key := iter.Key()
		start := int64(binary.BigEndian.Uint64(key[len(key)-8:]))
		chunk := iter.Value()
		if start > cur || start+int64(len(chunk)) <= cur {
			return int(filled), fmt.Errorf("%w: cycle %d off %d", errBadChunk, h.cycle, cur)
		}
		filled += int64(copy(p[filled:n], chunk[cur-start:]))
	}
	if n < want {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (h *pebbleHandle) AppendAt(off int64, p []byte) (int64, error) {
	if h.readOnly || h.store.readOnly {
		return 0, ErrReadOnly
	}
	end, err := h.Len()
	if err != nil {
		return 0, err
	}
	if off != end {
		return 0, fmt.Errorf("%w: off %d, end %d", ErrStaleAppend, off, end)
	}
	if len(p) == 0 {
		return off, nil
	}

	b := h.store.db.NewBatch()
	defer b.Close()
	if err := b.Set(keySegChunk(h.cycle, uint64(off)), p, nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], uint64(off)+uint64(len(p)))
	if err := b.Set(keySegMeta(h.cycle), meta[:], nil); err != nil {
		return 0, err
	}
	if err := h.store.db.CommitBatch(context.Background(), b); err != nil {
		return 0, fmt.Errorf("segment: commit append: %w", err)
	}
	return off + int64(len(p)), nil
}

// Sync is a no-op; durability follows the database's fsync policy at commit.
func (h *pebbleHandle) Sync() error { return nil }

func (h *pebbleHandle) Close() error { return nil }
