// Package queue implements the append and tail protocol over rolled
// segments.
//
// # Overview
//
// A Queue binds a segment store, a roll policy, an epoch, a clock and a
// payload codec. The single Appender owns the active cycle's write position:
// each append resolves the current cycle, rolls into a fresh segment when the
// clock crossed a boundary, enforces the policy's per-cycle capacity, and
// returns the entry's global address. Tailers are independent read cursors:
// they jump to any address through the sparse index plus a bounded forward
// scan, and follow rolls they did not create, including from strictly
// read-only processes.
//
//	q, _ := queue.Open(queue.Options{Store: st, Policy: p})
//	app, _ := q.Appender()
//	addr, _ := app.Append(ctx, []byte("hello"))
//
//	tl, _ := q.Tailer()
//	_ = tl.MoveToAddress(addr)
//	payload, _ := tl.ReadNext() // "hello"
//
// Entries are framed as uvarint length | body | crc32c(body); the body is
// whatever the configured codec produced. Reads past the last fully written
// frame surface ErrEndOfStream, which is the recoverable "nothing yet"
// signal callers poll on.
package queue
