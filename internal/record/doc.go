// Package record provides the typed entity model shared by every gtdflow store.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import record; record imports nothing internal.
//
// Key design constraints:
//   - Closed set of entity kinds, one Go type per kind, all embedding Base
//   - Records are values: an update produces a new version, never an in-place edit
//   - All JSON tags use snake_case; patches and snapshots use the same names
//   - CompletedAt is set if and only if the status is a completed status
package record
