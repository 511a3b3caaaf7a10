package reconcile

import "github.com/dshills/branchpoints/internal/breakpoint"

// Host is the editor's live breakpoint API.
type Host interface {
	// Breakpoints returns the current live breakpoints.
	Breakpoints() []breakpoint.Breakpoint

	// Add sets breakpoints. The host may emit a ChangeEvent synchronously.
	Add(bps []breakpoint.Breakpoint) error

	// Remove clears breakpoints. The host may emit a ChangeEvent synchronously.
	Remove(bps []breakpoint.Breakpoint) error
}

// Notifier is implemented by hosts that report their own changes. fn runs
// synchronously on the goroutine that changed the host, including from
// inside Add and Remove. The returned func cancels the subscription.
type Notifier interface {
	Subscribe(fn func(ChangeEvent)) (cancel func())
}

// ChangeEvent is a host notification about live breakpoint changes.
type ChangeEvent struct {
	Added   []breakpoint.Breakpoint
	Changed []breakpoint.Breakpoint
	Removed []breakpoint.Breakpoint
}

// Empty reports whether the event carries no changes.
func (e ChangeEvent) Empty() bool {
	return len(e.Added) == 0 && len(e.Changed) == 0 && len(e.Removed) == 0
}
