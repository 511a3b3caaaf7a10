package session

import (
	"context"

	"github.com/dshills/branchpoints/internal/branchmap"
	"github.com/dshills/branchpoints/internal/command"
	"github.com/dshills/branchpoints/internal/reconcile"
)

// Command IDs registered by every session.
const (
	CmdPrintMap    = "branchpoints.printMap"
	CmdClearMap    = "branchpoints.clearMap"
	CmdDedupMap    = "branchpoints.dedupMap"
	CmdApplyBranch = "branchpoints.applyBranch"
)

const category = "Branchpoints"

// DedupSummary is the result of the dedup command. Results lists the
// rebuilt branches.
type DedupSummary struct {
	Changed bool                    `json:"changed" yaml:"changed"`
	Results []branchmap.DedupResult `json:"-" yaml:"-"`
}

func (s *Session) registerCommands() error {
	cmds := []command.Command{
		{
			ID:       CmdPrintMap,
			Title:    "Print Branch Map",
			Category: category,
			Handler: func(ctx context.Context) (any, error) {
				return s.printMapLocked()
			},
		},
		{
			ID:       CmdClearMap,
			Title:    "Clear Branch Map",
			Category: category,
			Handler: func(ctx context.Context) (any, error) {
				return nil, s.clearMapLocked(ctx)
			},
		},
		{
			ID:       CmdDedupMap,
			Title:    "Remove Duplicate Breakpoints",
			Category: category,
			Handler: func(ctx context.Context) (any, error) {
				return s.dedupLocked(ctx)
			},
		},
		{
			ID:       CmdApplyBranch,
			Title:    "Re-apply Current Branch",
			Category: category,
			Handler: func(ctx context.Context) (any, error) {
				return s.applyLocked(s.Branch())
			},
		},
	}

	for _, cmd := range cmds {
		if err := s.commands.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs a registered command under the operation lock.
func (s *Session) Execute(ctx context.Context, id string) (any, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.commands.Execute(ctx, id)
}

// PrintMap logs the map as JSON and returns a copy. It changes nothing.
func (s *Session) PrintMap() (*branchmap.Map, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	return s.printMapLocked()
}

func (s *Session) printMapLocked() (*branchmap.Map, error) {
	m := s.Map()
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	s.log.Info("branch map: %s", data)
	return m, nil
}

// ClearMap resets the map to empty and rewrites the persisted value.
// It re-enables persistence after an unreadable map was found at Open.
func (s *Session) ClearMap(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.clearMapLocked(ctx)
}

func (s *Session) clearMapLocked(ctx context.Context) error {
	m, err := s.store.Clear(ctx)
	if err != nil {
		s.setMap(branchmap.New())
		return NewOperationError("clear", s.store.Key(), err)
	}
	s.setMap(m)
	s.setPersist(true)
	s.loadDedup = nil
	s.log.Info("branch map cleared")
	return nil
}

// Dedup runs the dedup pass over the current map and persists the result
// when anything changed.
func (s *Session) Dedup(ctx context.Context) (DedupSummary, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return DedupSummary{}, err
	}
	return s.dedupLocked(ctx)
}

// dedupLocked reports the branches rebuilt while loading together with
// those rebuilt now. Load-time results are reported once.
func (s *Session) dedupLocked(ctx context.Context) (DedupSummary, error) {
	next, results := branchmap.DedupReport(s.current(), s.log)
	now := recreated(results)

	summary := DedupSummary{
		Changed: len(s.loadDedup) > 0 || len(now) > 0,
		Results: append(s.loadDedup, now...),
	}
	s.loadDedup = nil
	if len(now) == 0 {
		return summary, nil
	}

	s.setMap(next)
	return summary, s.trySave(ctx)
}

func recreated(results []branchmap.DedupResult) []branchmap.DedupResult {
	var out []branchmap.DedupResult
	for _, r := range results {
		if r.Recreated {
			out = append(out, r)
		}
	}
	return out
}

// ApplyBranch applies the stored breakpoints of branch, or of the active
// branch when branch is empty.
func (s *Session) ApplyBranch(branch string) (reconcile.Plan, error) {
	if branch == "" {
		branch = s.Branch()
	}
	return s.HandleBranchChange(branch)
}

// Count returns the number of stored breakpoints for branch.
func (s *Session) Count(branch string) int {
	bps, _ := s.current().Breakpoints(branch)
	return len(bps)
}
