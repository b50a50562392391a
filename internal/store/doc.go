// Package store provides typed, durable CRUD for one record kind per store.
//
// A Store[T] keeps its whole collection under a single substrate key. Every
// mutation is a read-compute-write of that collection:
//
//  1. lock the store (one logical writer per key)
//  2. re-read the collection from the substrate
//  3. compute the new collection on a copy
//  4. write it back; on failure nothing else happens
//  5. unlock, then publish the change on the bus
//
// # Critical Patterns
//
// Single writer per key
//   - No other mutation of the same store interleaves inside one call
//   - Reads never cache: List and Get always re-fetch the committed state
//
// Write old, then swap
//   - The collection is built on a copy; a failed Set leaves the stored
//     collection and every caller-held value untouched
//   - Nothing is published for a failed write
//
// Monotonic modification time
//   - UpdatedAt = max(now, previous UpdatedAt) so a clock step backwards can
//     never reorder a record's versions
//
// Ordered events
//   - Each commit takes the next value of the store's logical sequence; events
//     carry it as Seq
package store
