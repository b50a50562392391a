// Package stats computes read-only statistics and next-task suggestions
// from the current contents of the entity stores.
//
// Nothing here writes. Every call re-reads the stores, so results always
// reflect the last committed state.
//
// A paired triage/quadrant task is one unit of work and is counted once:
// completions come from triage tasks plus quadrant tasks without a live
// back-reference.
package stats
