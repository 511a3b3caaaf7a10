// Package host provides a file-backed live breakpoint list.
//
// FileHost stands in for an editor's debugger breakpoint API. The live list
// is kept in a JSON file:
//
//	{"version": 1, "breakpoints": [ ... ]}
//
// where each entry uses the persisted breakpoint shape. Add, Remove and
// Update rewrite the file and notify listeners synchronously, before the
// call returns. Reload re-reads the file after an external edit and
// notifies listeners with the difference.
package host
