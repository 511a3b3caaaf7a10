// Package session owns the state of one branchpoints workspace.
//
// A Session holds the configuration, logger, persisted branch map, branch
// detector, live breakpoint host, reconciler, command registry and script
// runner. Nothing is global: every collaborator is reached through the
// Session that created it.
//
// Lifecycle:
//
//	New ──▶ Open (load, migrate, dedup, detect, apply) ──▶ Run ──▶ Close
//
// Run drives a single event loop over branch marker and host file events.
// Every operation that reads or replaces the map, whether it comes from the
// loop, a command or a script, runs under one operation lock, so the map
// only ever changes on one goroutine at a time.
package session
