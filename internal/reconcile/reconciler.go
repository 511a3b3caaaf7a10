package reconcile

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/dshills/branchpoints/internal/branchmap"
	"github.com/dshills/branchpoints/internal/breakpoint"
	"github.com/dshills/branchpoints/internal/logging"
)

// State is the reconciler's apply state.
type State int32

const (
	// StateIdle folds host events into the map.
	StateIdle State = iota
	// StateApplying ignores host events; the reconciler is driving the host.
	StateApplying
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateApplying:
		return "applying"
	default:
		return "unknown"
	}
}

// Plan is the set of host operations for one apply.
type Plan struct {
	// ID correlates log lines of one apply.
	ID string

	// Branch is the target branch.
	Branch string

	// ToAdd are stored breakpoints missing from the host.
	ToAdd []breakpoint.Breakpoint

	// ToRemove are host breakpoints missing from the stored list.
	ToRemove []breakpoint.Breakpoint
}

// Empty reports whether the plan has no operations.
func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

// Reconciler applies stored branch lists to the host and folds host
// changes back into the map.
type Reconciler struct {
	host  Host
	state atomic.Int32
	log   *logging.Logger
}

// New creates a reconciler bound to host.
func New(host Host, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Discard()
	}
	return &Reconciler{
		host: host,
		log:  log.WithComponent("reconcile"),
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	return State(r.state.Load())
}

// acquire enters Applying. The returned release must be deferred.
func (r *Reconciler) acquire() (release func(), err error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateApplying)) {
		return nil, ErrBusy
	}
	return func() {
		r.state.Store(int32(StateIdle))
	}, nil
}

// Plan computes the operations that would make the host match the stored
// list for branch. Stored entries that cannot be materialized are left out
// of ToAdd and reported in the returned error.
func (r *Reconciler) Plan(m *branchmap.Map, branch string) (Plan, error) {
	if r.host == nil {
		return Plan{}, ErrNoHost
	}

	plan := Plan{ID: uuid.NewString(), Branch: branch}
	stored, _ := m.Breakpoints(branch)
	live := r.host.Breakpoints()

	plan.ToRemove = breakpoint.Difference(live, stored)

	var errs []error
	for i, bp := range stored {
		if breakpoint.Contains(live, bp) || breakpoint.Contains(plan.ToAdd, bp) {
			continue
		}
		materialized, err := bp.Materialize()
		if err != nil {
			errs = append(errs, fmt.Errorf("branch %q entry %d: %w", branch, i, err))
			continue
		}
		plan.ToAdd = append(plan.ToAdd, materialized)
	}

	return plan, errors.Join(errs...)
}

// ApplyBranch makes the host's live set equal the stored list for branch.
//
// An absent or empty stored list leaves the host untouched. Otherwise the
// missing stored breakpoints are added first and the extra live ones are
// removed second, so no location that still matters is ever without its
// breakpoint. Host change events emitted during the calls are ignored.
func (r *Reconciler) ApplyBranch(m *branchmap.Map, branch string) (Plan, error) {
	if r.host == nil {
		return Plan{}, ErrNoHost
	}

	stored, ok := m.Breakpoints(branch)
	if !ok || len(stored) == 0 {
		r.log.Info("no stored breakpoints for %q, host left untouched", branch)
		return Plan{Branch: branch}, nil
	}

	plan, planErr := r.Plan(m, branch)
	if planErr != nil {
		r.log.Error("plan %s: %v", plan.ID, planErr)
	}
	if plan.Empty() {
		r.log.Debug("branch %q already applied (%s)", branch, plan.ID)
		return plan, planErr
	}

	if err := r.apply(plan); err != nil {
		return plan, errors.Join(planErr, err)
	}

	r.log.Info("applied %q (%s): +%d -%d", branch, plan.ID, len(plan.ToAdd), len(plan.ToRemove))
	return plan, planErr
}

// apply issues the plan's host calls inside the Applying state.
func (r *Reconciler) apply(plan Plan) error {
	release, err := r.acquire()
	if err != nil {
		return err
	}
	defer release()

	if len(plan.ToAdd) > 0 {
		if err := r.host.Add(plan.ToAdd); err != nil {
			return fmt.Errorf("add breakpoints: %w", err)
		}
	}
	if len(plan.ToRemove) > 0 {
		if err := r.host.Remove(plan.ToRemove); err != nil {
			return fmt.Errorf("remove breakpoints: %w", err)
		}
	}
	return nil
}

// OnHostChange folds a host change event into the stored list of branch
// and returns the resulting map. The input map is never modified; the
// returned flag reports whether the result differs from it.
//
// While Applying the event is the echo of the reconciler's own calls and m
// is returned unchanged. Changed and removed entries without a stored
// counterpart are logged and otherwise ignored.
func (r *Reconciler) OnHostChange(m *branchmap.Map, ev ChangeEvent, branch string) (*branchmap.Map, bool) {
	if r.State() == StateApplying {
		r.log.Debug("ignoring host change while applying")
		return m, false
	}

	bps, exists := m.Breakpoints(branch)
	changed := !exists

	for _, bp := range ev.Added {
		if err := bp.Validate(); err != nil {
			r.log.Warn("ignoring added %v: %v", bp, err)
			continue
		}
		if breakpoint.Contains(bps, bp) {
			continue
		}
		bps = append(bps, bp)
		changed = true
	}

	for _, bp := range ev.Changed {
		i := breakpoint.IndexOf(bps, bp)
		if i < 0 {
			r.log.Warn("changed %v has no stored counterpart on %q, ignored", bp, branch)
			continue
		}
		r.log.Debug("updating %q entry %d: %v", branch, i, bp)
		bps[i] = bp
		changed = true
	}

	for _, bp := range ev.Removed {
		i := breakpoint.IndexOf(bps, bp)
		if i < 0 {
			r.log.Warn("removed %v has no stored counterpart on %q, ignored", bp, branch)
			continue
		}
		bps = append(bps[:i], bps[i+1:]...)
		changed = true
	}

	if !changed {
		return m, false
	}
	if bps == nil {
		bps = []breakpoint.Breakpoint{}
	}
	return m.WithBranch(branch, bps), true
}
