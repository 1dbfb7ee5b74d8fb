package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rzbill/rollq/internal/codec"
	"github.com/rzbill/rollq/internal/rollcycle"
	"github.com/rzbill/rollq/internal/segment"
)

func testPolicy(t *testing.T, name string) rollcycle.Policy {
	t.Helper()
	p, ok := rollcycle.NewCatalog().ByName(name)
	if !ok {
		t.Fatalf("policy %q not in catalog", name)
	}
	return p
}

func openFileQueue(t *testing.T, dir string, p rollcycle.Policy, clk rollcycle.Clock, readOnly bool) *Queue {
	t.Helper()
	st, err := segment.NewFileStore(segment.FileOptions{Dir: dir, Policy: p, ReadOnly: readOnly})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	q, err := Open(Options{Store: st, Policy: p, Clock: clk, ReadOnly: readOnly})
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() {
		q.Close()
		st.Close()
	})
	return q
}

func TestAppendReadBack(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, err := q.Appender()
	if err != nil {
		t.Fatalf("appender: %v", err)
	}
	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	var addrs []rollcycle.Address
	for _, m := range want {
		a, err := app.Append(context.Background(), m)
		if err != nil {
			t.Fatalf("append %q: %v", m, err)
		}
		addrs = append(addrs, a)
	}

	tl, err := q.Tailer()
	if err != nil {
		t.Fatalf("tailer: %v", err)
	}
	if err := tl.MoveToAddress(addrs[0]); err != nil {
		t.Fatalf("move: %v", err)
	}
	for i, m := range want {
		got, err := tl.ReadNext()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if string(got) != string(m) {
			t.Fatalf("read %d: got %q, want %q", i, got, m)
		}
	}
	if _, err := tl.ReadNext(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected end of stream, got %v", err)
	}
}

func TestAddressesMonotonic(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	var prev rollcycle.Address
	for i := 0; i < 50; i++ {
		if i%10 == 9 {
			clk.Advance(time.Second)
		}
		a, err := app.Append(context.Background(), []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if i > 0 && a <= prev {
			t.Fatalf("address regressed at %d: %v after %v", i, a, prev)
		}
		prev = a
	}
}

// A tailer parked on an old entry reads that entry and then everything that
// followed, crossing silently into later cycles, including over gaps where
// no segment was ever written.
func TestTailAcrossRolls(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	dir := t.TempDir()
	q := openFileQueue(t, dir, p, clk, false)

	app, err := q.Appender()
	if err != nil {
		t.Fatalf("appender: %v", err)
	}
	if _, err := app.Append(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("append hello: %v", err)
	}
	heyAddr, err := app.Append(context.Background(), []byte("hey"))
	if err != nil {
		t.Fatalf("append hey: %v", err)
	}

	// Several cycles pass with nothing written; those cycles get no
	// segments at all.
	clk.Advance(5 * time.Second)
	if _, err := app.Append(context.Background(), []byte("hello")); err != nil {
		t.Fatalf("append hello 2: %v", err)
	}
	if _, err := app.Append(context.Background(), []byte("hey")); err != nil {
		t.Fatalf("append hey 2: %v", err)
	}
	if err := app.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	read := func(t *testing.T, q *Queue) {
		t.Helper()
		tl, err := q.Tailer()
		if err != nil {
			t.Fatalf("tailer: %v", err)
		}
		defer tl.Close()
		if err := tl.MoveToAddress(heyAddr); err != nil {
			t.Fatalf("move to %v: %v", heyAddr, err)
		}
		for i, want := range []string{"hey", "hello", "hey"} {
			got, err := tl.ReadNext()
			if err != nil {
				t.Fatalf("read %d: %v", i, err)
			}
			if string(got) != want {
				t.Fatalf("read %d: got %q, want %q", i, got, want)
			}
		}
		if _, err := tl.ReadNext(); !errors.Is(err, ErrEndOfStream) {
			t.Fatalf("expected end of stream, got %v", err)
		}
	}

	read(t, q)

	// A strictly read-only process opened afterwards sees the same stream.
	ro := openFileQueue(t, dir, p, clk, true)
	read(t, ro)
	if _, err := ro.Appender(); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected read-only refusal, got %v", err)
	}
}

// Tailing must never change a single byte on disk.
func TestTailerLeavesSegmentsUntouched(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	dir := t.TempDir()
	q := openFileQueue(t, dir, p, clk, false)

	app, _ := q.Appender()
	var first rollcycle.Address
	for i := 0; i < 10; i++ {
		if i%4 == 3 {
			clk.Advance(time.Second)
		}
		a, err := app.Append(context.Background(), []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if i == 0 {
			first = a
		}
	}
	app.Sync()

	before := snapshotDir(t, dir)

	ro := openFileQueue(t, dir, p, clk, true)
	tl, _ := ro.Tailer()
	if err := tl.MoveToAddress(first); err != nil {
		t.Fatalf("move: %v", err)
	}
	for {
		if _, err := tl.ReadNext(); err != nil {
			if !errors.Is(err, ErrEndOfStream) {
				t.Fatalf("read: %v", err)
			}
			break
		}
	}
	tl.Close()

	after := snapshotDir(t, dir)
	if len(before) != len(after) {
		t.Fatalf("file set changed: %d vs %d", len(before), len(after))
	}
	for name, b := range before {
		if string(after[name]) != string(b) {
			t.Fatalf("segment %s changed under read-only tailer", name)
		}
	}
}

func snapshotDir(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	out := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		out[e.Name()] = b
	}
	return out
}

func TestCapacityEnforced(t *testing.T) {
	// Eight-entry fanout with spacing 1 caps a cycle at 64 entries.
	p := testPolicy(t, "test-daily")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	max := int(p.MaxEntriesPerCycle())
	for i := 0; i < max; i++ {
		if _, err := app.Append(context.Background(), []byte("x")); err != nil {
			t.Fatalf("append %d of %d: %v", i, max, err)
		}
	}
	if _, err := app.Append(context.Background(), []byte("overflow")); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected capacity error, got %v", err)
	}

	// The next cycle starts fresh.
	clk.Advance(24 * time.Hour)
	a, err := app.Append(context.Background(), []byte("next"))
	if err != nil {
		t.Fatalf("append after roll: %v", err)
	}
	if got := p.SequenceOf(a); got != 0 {
		t.Fatalf("sequence after roll: got %d, want 0", got)
	}
}

func TestAppenderResumesExistingSegment(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	dir := t.TempDir()

	q1 := openFileQueue(t, dir, p, clk, false)
	app1, _ := q1.Appender()
	for i := 0; i < 3; i++ {
		if _, err := app1.Append(context.Background(), []byte(fmt.Sprintf("a%d", i))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := q1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Same directory, same cycle: the new appender must continue at
	// sequence 3, not clobber the existing entries.
	q2 := openFileQueue(t, dir, p, clk, false)
	app2, _ := q2.Appender()
	a, err := app2.Append(context.Background(), []byte("a3"))
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if got := p.SequenceOf(a); got != 3 {
		t.Fatalf("resumed sequence: got %d, want 3", got)
	}

	tl, _ := q2.Tailer()
	for i := 0; i < 4; i++ {
		got, err := tl.ReadNext()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if want := fmt.Sprintf("a%d", i); string(got) != want {
			t.Fatalf("read %d: got %q, want %q", i, got, want)
		}
	}
}

func TestLastAddressAppended(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	if _, err := app.LastAddressAppended(); !errors.Is(err, ErrNoPriorAppend) {
		t.Fatalf("expected no-prior-append, got %v", err)
	}
	a, err := app.Append(context.Background(), []byte("m"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := app.LastAddressAppended()
	if err != nil {
		t.Fatalf("last address: %v", err)
	}
	if got != a {
		t.Fatalf("last address: got %v, want %v", got, a)
	}
}

func TestFirstAndLastAddress(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	if _, err := q.FirstAddress(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("empty first: %v", err)
	}
	if _, err := q.LastAddress(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("empty last: %v", err)
	}

	app, _ := q.Appender()
	first, _ := app.Append(context.Background(), []byte("a"))
	clk.Advance(3 * time.Second)
	app.Append(context.Background(), []byte("b"))
	last, _ := app.Append(context.Background(), []byte("c"))
	app.Sync()

	if got, err := q.FirstAddress(); err != nil || got != first {
		t.Fatalf("first: got %v, %v; want %v", got, err, first)
	}
	if got, err := q.LastAddress(); err != nil || got != last {
		t.Fatalf("last: got %v, %v; want %v", got, err, last)
	}
}

func TestMoveToMissingCycle(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	app.Append(context.Background(), []byte("m"))

	tl, _ := q.Tailer()
	if err := tl.MoveToAddress(p.Compose(7, 0)); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("expected segment-not-found, got %v", err)
	}
	if err := tl.MoveToAddress(p.Compose(0, 99)); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected end-of-stream for unwritten sequence, got %v", err)
	}
}

func TestTailerFollowsLiveAppends(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	app.Append(context.Background(), []byte("m0"))

	tl, _ := q.Tailer()
	if got, err := tl.ReadNext(); err != nil || string(got) != "m0" {
		t.Fatalf("read: %q, %v", got, err)
	}
	if _, err := tl.ReadNext(); !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected end of stream, got %v", err)
	}

	// New entries land in a later cycle; the parked tailer picks them up
	// on the next call without repositioning.
	clk.Advance(2 * time.Second)
	app.Append(context.Background(), []byte("m1"))
	if got, err := tl.ReadNext(); err != nil || string(got) != "m1" {
		t.Fatalf("read after roll: %q, %v", got, err)
	}
}

func TestSnappyCodecRoundTrip(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	st, err := segment.NewFileStore(segment.FileOptions{Dir: t.TempDir(), Policy: p})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()
	q, err := Open(Options{Store: st, Policy: p, Clock: clk, Codec: codec.Snappy{}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer q.Close()

	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte('a' + i%4)
	}
	app, _ := q.Appender()
	addr, err := app.Append(context.Background(), payload)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	tl, _ := q.Tailer()
	if err := tl.MoveToAddress(addr); err != nil {
		t.Fatalf("move: %v", err)
	}
	got, err := tl.ReadNext()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch after snappy round trip")
	}
}

func TestNextAddress(t *testing.T) {
	p := testPolicy(t, "test-secondly")
	clk := rollcycle.NewManualClock(0)
	q := openFileQueue(t, t.TempDir(), p, clk, false)

	app, _ := q.Appender()
	a0, _ := app.Append(context.Background(), []byte("m0"))
	a1, _ := app.Append(context.Background(), []byte("m1"))

	tl, _ := q.Tailer()
	if _, err := tl.NextAddress(); !errors.Is(err, ErrUnpositioned) {
		t.Fatalf("expected unpositioned, got %v", err)
	}
	if err := tl.MoveToAddress(a0); err != nil {
		t.Fatalf("move: %v", err)
	}
	if got, _ := tl.NextAddress(); got != a0 {
		t.Fatalf("next address: got %v, want %v", got, a0)
	}
	tl.ReadNext()
	if got, _ := tl.NextAddress(); got != a1 {
		t.Fatalf("next address after read: got %v, want %v", got, a1)
	}
}
