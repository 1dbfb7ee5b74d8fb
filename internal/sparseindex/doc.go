// Package sparseindex maps sequence numbers inside one segment to
// approximate byte offsets, enabling sub-linear random access.
//
// # Overview
//
// The index is two-level: a root of fanout slots, each lazily bound to a leaf
// block of fanout offsets. A breadcrumb is recorded for every spacing-th
// entry, so the structure tops out at fanout*fanout slots covering
// fanout*fanout*spacing entries while random access costs two hops plus a
// forward scan of at most spacing entries. Leaf blocks come from a flat
// arena, so the whole index is two slices rather than a pointer forest.
//
// One index instance belongs to exactly one writer (the appender of the
// segment, or a tailer rebuilding its private copy while scanning); readers
// of a shared instance are not supported and not needed, which is what keeps
// the structure lock-free.
package sparseindex
