// Package segment provides the physical storage for one cycle's entries.
//
// # Overview
//
// A Store maps cycle numbers to segment handles. Segments are append-only:
// bytes are written at the end by exactly one writer, never rewritten, and a
// segment belonging to a past cycle is never touched again. Readers open
// handles independently and may watch a live segment grow via Len.
//
// Two backends exist. The file store keeps one data file per cycle in a
// directory, named purely from (cycle, policy format, epoch) so any process
// with the same policy finds any segment without a shared catalog; writer
// exclusivity is a lock file. The pebble store keeps segment bytes in a
// Pebble database as one chunk per append, keyed by (cycle, offset).
//
// The queue core issues only the Store/Handle calls; naming, syncing and
// growth strategy stay in here.
package segment
