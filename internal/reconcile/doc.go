// Package reconcile keeps the host's live breakpoints and the branch map
// consistent in both directions.
//
// On a branch change, ApplyBranch diffs the host's live set against the
// stored list for the new branch and issues the minimal add/remove calls.
// On a host change event, OnHostChange folds the change into the stored
// list of the current branch.
//
// The host reports its own add/remove calls back as change events,
// synchronously and re-entrantly. The Reconciler therefore runs a two-state
// machine:
//
//	Idle ──acquire──▶ Applying ──release (always)──▶ Idle
//
// Host events arriving while Applying are ignored. The release is deferred,
// so it runs on every exit path including errors and panics from the host.
package reconcile
