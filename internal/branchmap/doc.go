// Package branchmap holds the persisted mapping from branch name to the
// breakpoints set on that branch.
//
// The Map is the single source of truth for what should be set; the host's
// live list is a projection of the entry for the active branch. Maps are
// treated as values: operations that change a map return a new one and
// leave the input untouched.
//
// Loading goes through three steps:
//
//	blob  --Migrate-->  current-schema blob  --Decode-->  *Map  --Dedup-->  *Map
//
// Migrate upgrades older schema shapes on the raw JSON, Decode builds the
// model, and Dedup repairs identity duplicates that accumulated because the
// host may report two "different" objects with the same identity.
package branchmap
