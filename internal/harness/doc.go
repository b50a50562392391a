// Package harness runs scripted scenarios against a fully wired gtdflow
// instance and checks the outcome.
//
// A scenario is a YAML file naming a flow of user actions (capture, process,
// complete, undo, ...) and a list of assertions over the resulting trace and
// final store contents. Each run gets a fresh in-memory substrate, a fake
// clock starting at the scenario's "now" and sequential record identifiers
// (id-1, id-2, ...), so identical scenarios always produce identical state.
//
// Example scenario:
//
//	name: call_vendor
//	description: A work call due tomorrow lands in urgent-important
//	flow:
//	  - action: capture
//	    args: {title: Call vendor, context: work}
//	    as: item
//	  - action: process
//	    args: {id: $item, due_at: "2026-10-20T17:00:00Z"}
//	    pair_as: quadrant
//	assertions:
//	  - type: final_state
//	    store: eisenhower-tasks
//	    where: {id: $quadrant}
//	    expect: {quadrant: urgent-important}
//
// Arguments and assertion values starting with "$" refer to identifiers
// bound by earlier steps through as, history_as and pair_as.
//
// The trace interleaves one "step" event per flow step with the store
// events published on the bus while that step ran.
//
// After the flow, the pairing principles (see Principles) are checked
// against the final state; a violation fails the scenario like a failed
// assertion.
//
// RunWithGolden additionally compares a timestamp-free rendering of the
// final state with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
