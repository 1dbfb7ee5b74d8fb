package queue

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/rzbill/rollq/internal/segment"
	"github.com/rzbill/rollq/internal/sparseindex"
)

// Frame layout: uvarint body length | body | crc32c(body).
// The body is the codec's output, not the raw payload.

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const (
	maxVarintLen = binary.MaxVarintLen64
	crcLen       = 4
)

// encodeFrame wraps body in a length-prefixed, checksummed frame.
func encodeFrame(body []byte) []byte {
	buf := make([]byte, maxVarintLen+len(body)+crcLen)
	n := binary.PutUvarint(buf, uint64(len(body)))
	n += copy(buf[n:], body)
	binary.LittleEndian.PutUint32(buf[n:], crc32.Checksum(body, crcTable))
	return buf[:n+crcLen]
}

// readFrame decodes the frame starting at off. end is the segment's current
// end offset; anything at or beyond it does not exist yet. A frame that runs
// past end is treated as not yet written and reported as io.EOF, which the
// caller maps to the recoverable end-of-stream condition. A frame fully
// inside the written region that fails its checksum is corrupt.
func readFrame(h segment.Handle, off, end int64) (body []byte, next int64, err error) {
	if off >= end {
		return nil, 0, io.EOF
	}
	hdr := make([]byte, maxVarintLen)
	if int64(len(hdr)) > end-off {
		hdr = hdr[:end-off]
	}
	if _, err := h.ReadAt(hdr, off); err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("read frame header at %d: %w", off, err)
	}
	bodyLen, n := binary.Uvarint(hdr)
	if n <= 0 {
		if len(hdr) < maxVarintLen {
			// Truncated varint at the very tail: a write in flight.
			return nil, 0, io.EOF
		}
		return nil, 0, fmt.Errorf("frame at %d: bad length prefix: %w", off, ErrCorruptEntry)
	}
	// Compare in uint64 space: a hostile length prefix must not overflow
	// the frame length arithmetic.
	rest := uint64(end - off - int64(n))
	if rest < crcLen || bodyLen > rest-crcLen {
		return nil, 0, io.EOF
	}
	frameLen := int64(n) + int64(bodyLen) + crcLen
	buf := make([]byte, bodyLen+crcLen)
	if _, err := h.ReadAt(buf, off+int64(n)); err != nil && err != io.EOF {
		return nil, 0, fmt.Errorf("read frame body at %d: %w", off, err)
	}
	body = buf[:bodyLen]
	want := binary.LittleEndian.Uint32(buf[bodyLen:])
	if crc32.Checksum(body, crcTable) != want {
		return nil, 0, fmt.Errorf("frame at %d: checksum mismatch: %w", off, ErrCorruptEntry)
	}
	return body, off + frameLen, nil
}

// scanFrames walks frames from (seq, off) until reaching targetSeq, recording
// sparse index breadcrumbs for every entry it passes. targetSeq < 0 scans to
// the end of the written region. It returns the position reached; io.EOF
// means the target lies beyond what is written.
func scanFrames(h segment.Handle, idx *sparseindex.Index, seq, off, targetSeq, end int64) (int64, int64, error) {
	for {
		if targetSeq >= 0 && seq == targetSeq {
			return seq, off, nil
		}
		_, next, err := readFrame(h, off, end)
		if err == io.EOF {
			return seq, off, io.EOF
		}
		if err != nil {
			return seq, off, err
		}
		if idx != nil {
			if rerr := idx.Record(seq, off); rerr != nil {
				return seq, off, rerr
			}
		}
		seq, off = seq+1, next
	}
}
