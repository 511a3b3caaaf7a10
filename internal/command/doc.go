// Package command provides the registry of user-invocable commands.
//
// Commands are identified by a dotted ID such as "branchpoints.printMap".
// Handlers run on the caller's goroutine; the session invokes them from its
// event loop so they never race with branch or host changes.
package command
