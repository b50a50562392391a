// Package substrate provides the persistent key/value layer under every
// entity store.
//
// The contract is deliberately small: Get returns the serialized collection
// stored under a key (or reports it absent) and Set replaces it. Every store
// mutation is a full-collection read-modify-write against one key.
//
// # Implementations
//
//   - SQLite: durable, one row per key, WAL mode, single writer per file
//     enforced with an advisory lock (gofrs/flock)
//   - Memory: process-local, optional byte quota, used by tests
//
// Both are safe for concurrent use. Neither interprets the bytes it stores.
package substrate
