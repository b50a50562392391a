// Package engine implements the cross-representation synchronizer.
//
// A unit of work can live in two representations at once: a TriageTask in
// the inbox/next-action list and a QuadrantTask in the urgency/importance
// grid, linked by QuadrantTask.GTDTaskID. The engine keeps the pair in
// agreement on existence and completion and keeps focus sessions from
// running against finished or deleted work.
//
// ARCHITECTURE:
//
// Stores know nothing about each other. The triage store is built with a
// sync hint towards the quadrant store; Attach subscribes to that hint and
// runs AutoImport, so every triage mutation re-establishes the pairing.
//
// Cross-store operations (CompleteTask, DeleteTask) are a sequence of
// single-store commits:
//  1. primary record: failure is fatal and returned
//  2. paired record: re-read right before use; failure is logged and
//     reported in the result, never rolled back
//  3. focus sessions referencing either identifier
//  4. history entry for the primary change
//
// CRITICAL PATTERNS:
//
// Atomic pairing check
//   - AutoImport creates through Store.CreateUnique, so "no quadrant task
//     references this triage task" is re-validated inside the quadrant
//     store's critical section
//
// Dangling back-references
//   - A GTDTaskID naming a missing triage task is a PairingInconsistency:
//     logged at warn and treated as no pairing
//
// Pure classification
//   - Classify has no I/O and takes "now" as an argument
package engine
