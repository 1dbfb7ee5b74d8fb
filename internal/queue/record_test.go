package queue

import (
	"errors"
	"io"
	"testing"

	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
)

func openHandle(t *testing.T) segment.Handle {
	t.Helper()
	p, _ := rollcycle.NewCatalog().ByName("test-secondly")
	st, err := segment.NewFileStore(segment.FileOptions{Dir: t.TempDir(), Policy: p})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	h, err := st.OpenOrCreate(0)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestReadFrameRoundTrip(t *testing.T) {
	h := openHandle(t)
	off := h.DataStart()
	end, err := h.AppendAt(off, encodeFrame([]byte("payload")))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	body, next, err := readFrame(h, off, end)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(body) != "payload" {
		t.Fatalf("body: got %q", body)
	}
	if next != end {
		t.Fatalf("next: got %d, want %d", next, end)
	}
}

func TestReadFrameTornWrite(t *testing.T) {
	h := openHandle(t)
	off := h.DataStart()
	frame := encodeFrame([]byte("payload"))

	// Every strict prefix of a frame must read as not-yet-written, never
	// as corruption.
	for cut := 1; cut < len(frame); cut++ {
		end, err := h.AppendAt(off, frame[:cut])
		if err != nil {
			t.Fatalf("append prefix %d: %v", cut, err)
		}
		if _, _, err := readFrame(h, off, end); err != io.EOF {
			t.Fatalf("prefix %d: got %v, want io.EOF", cut, err)
		}
		// Complete the frame; it must now read cleanly.
		if end, err = h.AppendAt(end, frame[cut:]); err != nil {
			t.Fatalf("complete frame: %v", err)
		}
		body, next, err := readFrame(h, off, end)
		if err != nil {
			t.Fatalf("completed frame: %v", err)
		}
		if string(body) != "payload" {
			t.Fatalf("completed body: got %q", body)
		}
		off = next
	}
}

func TestReadFrameOversizedLengthPrefix(t *testing.T) {
	h := openHandle(t)
	off := h.DataStart()

	// A full 10-byte varint claiming 1<<63 body bytes. The length check
	// must not overflow into a passing bounds test and panic on make.
	junk := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	junk = append(junk, []byte("trailing bytes")...)
	end, err := h.AppendAt(off, junk)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, _, err := readFrame(h, off, end); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
	// The recovery scan must survive it too.
	seq, got, err := scanFrames(h, nil, 0, off, -1, end)
	if err != io.EOF || seq != 0 || got != off {
		t.Fatalf("scan: seq %d off %d err %v", seq, got, err)
	}
}

func TestReadFrameChecksumMismatch(t *testing.T) {
	h := openHandle(t)
	off := h.DataStart()
	frame := encodeFrame([]byte("payload"))
	frame[len(frame)-1] ^= 0xff
	end, err := h.AppendAt(off, frame)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, _, err := readFrame(h, off, end); !errors.Is(err, ErrCorruptEntry) {
		t.Fatalf("got %v, want corrupt entry", err)
	}
}

func TestScanFramesStopsAtTarget(t *testing.T) {
	h := openHandle(t)
	off := h.DataStart()
	offsets := []int64{off}
	for i := 0; i < 5; i++ {
		next, err := h.AppendAt(offsets[i], encodeFrame([]byte{byte(i)}))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		offsets = append(offsets, next)
	}
	end := offsets[5]
	seq, got, err := scanFrames(h, nil, 0, h.DataStart(), 3, end)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if seq != 3 || got != offsets[3] {
		t.Fatalf("scan to 3: got seq %d off %d, want 3 %d", seq, got, offsets[3])
	}
	seq, _, err = scanFrames(h, nil, 0, h.DataStart(), -1, end)
	if err != io.EOF || seq != 5 {
		t.Fatalf("scan to end: seq %d err %v", seq, err)
	}
}
