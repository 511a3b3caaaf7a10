// Package breakpoint defines the breakpoint value model shared by the
// branch map, the reconciler, and the host.
//
// A Breakpoint is a tagged union with two valid kinds:
//
//   - Source breakpoints are anchored to a Location (path + range)
//   - Function breakpoints are anchored to a function name
//
// Valid values can only be built with NewSource and NewFunction. Decoding a
// persisted entry that carries both or neither anchor yields a malformed
// value that keeps its raw JSON, never compares equal to anything, and
// cannot be materialized into a live host breakpoint.
//
// # Identity
//
// Equal compares identity only:
//
//	NewSource(loc, Attributes{Enabled: true})
//	NewSource(loc, Attributes{Condition: "x > 1"})
//
// are equal, because enabled/condition/hitCondition/logMessage are
// attributes, not identity. SameAttributes compares the attributes.
package breakpoint
