package branchmap

import (
	"fmt"

	"github.com/dshills/branchpoints/internal/breakpoint"
	"github.com/dshills/branchpoints/internal/logging"
)

// beforeBranch is called at the start of each branch's dedup. Tests
// override it to inject failures.
var beforeBranch = func(Branch) {}

// DedupResult describes what the pass did to one branch.
type DedupResult struct {
	Branch     string
	Duplicates int
	Malformed  int
	Recreated  bool
	Err        error
}

// Dedup collapses identity duplicates in every branch of m.
//
// A branch is rebuilt only when some identity key holds more than one
// entry; the first entry per key is kept. Rebuilt lists hold the retained
// source breakpoints followed by the retained function breakpoints, each
// group in first-seen key order. Malformed entries are excluded from the
// rebuilt list. Branches without duplicates are left exactly as they were.
//
// A failure while processing one branch leaves that branch unchanged and
// does not stop the pass. The returned flag reports whether anything
// changed; when false the returned map is m itself.
func Dedup(m *Map, log *logging.Logger) (*Map, bool) {
	out, results := DedupReport(m, log)
	for _, r := range results {
		if r.Recreated {
			return out, true
		}
	}
	return m, false
}

// DedupReport runs the pass and returns per-branch results.
func DedupReport(m *Map, log *logging.Logger) (*Map, []DedupResult) {
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithComponent("dedup")

	out := m.Clone()
	results := make([]DedupResult, 0, len(out.Branches))

	for i, b := range out.Branches {
		list, res := dedupBranch(b, log)
		results = append(results, res)

		if res.Err != nil {
			log.Error("branch %q left as-is: %v", b.Name, res.Err)
			continue
		}
		if res.Recreated {
			log.Info("branch %q recreated: %d duplicate(s) removed, %d malformed dropped",
				b.Name, res.Duplicates, res.Malformed)
			out.Branches[i].Breakpoints = list
		}
	}

	return out, results
}

// sourceIndex groups source breakpoints by path, then by range key,
// remembering first-seen order at both levels.
type sourceIndex struct {
	paths  []string
	ranges map[string][]string
	byKey  map[string]map[string][]breakpoint.Breakpoint
}

func newSourceIndex() *sourceIndex {
	return &sourceIndex{
		ranges: make(map[string][]string),
		byKey:  make(map[string]map[string][]breakpoint.Breakpoint),
	}
}

func (x *sourceIndex) add(loc breakpoint.Location, bp breakpoint.Breakpoint) {
	byRange, ok := x.byKey[loc.Path]
	if !ok {
		byRange = make(map[string][]breakpoint.Breakpoint)
		x.byKey[loc.Path] = byRange
		x.paths = append(x.paths, loc.Path)
	}
	rk := loc.Range.String()
	if _, ok := byRange[rk]; !ok {
		x.ranges[loc.Path] = append(x.ranges[loc.Path], rk)
	}
	byRange[rk] = append(byRange[rk], bp)
}

// functionIndex groups function breakpoints by name in first-seen order.
type functionIndex struct {
	names  []string
	byName map[string][]breakpoint.Breakpoint
}

func newFunctionIndex() *functionIndex {
	return &functionIndex{byName: make(map[string][]breakpoint.Breakpoint)}
}

func (x *functionIndex) add(name string, bp breakpoint.Breakpoint) {
	if _, ok := x.byName[name]; !ok {
		x.names = append(x.names, name)
	}
	x.byName[name] = append(x.byName[name], bp)
}

// dedupBranch returns the rebuilt list and what happened. The list is only
// meaningful when res.Recreated is set.
func dedupBranch(b Branch, log *logging.Logger) (list []breakpoint.Breakpoint, res DedupResult) {
	res.Branch = b.Name

	defer func() {
		if r := recover(); r != nil {
			list = nil
			res = DedupResult{Branch: b.Name, Err: fmt.Errorf("%w: %v", ErrBranchFailed, r)}
		}
	}()

	beforeBranch(b)

	sources := newSourceIndex()
	functions := newFunctionIndex()

	for i, bp := range b.Breakpoints {
		if loc, ok := bp.Location(); ok {
			sources.add(loc, bp)
			continue
		}
		if name, ok := bp.FunctionName(); ok {
			functions.add(name, bp)
			continue
		}
		res.Malformed++
		log.Warn("branch %q entry %d is malformed: %v", b.Name, i, bp)
	}

	for _, path := range sources.paths {
		for _, rk := range sources.ranges[path] {
			entries := sources.byKey[path][rk]
			if len(entries) > 1 {
				res.Duplicates += len(entries) - 1
				log.Debug("branch %q: %d entries at %s@%s", b.Name, len(entries), path, rk)
			}
			list = append(list, entries[0])
		}
	}
	for _, name := range functions.names {
		entries := functions.byName[name]
		if len(entries) > 1 {
			res.Duplicates += len(entries) - 1
			log.Debug("branch %q: %d entries for func %s", b.Name, len(entries), name)
		}
		list = append(list, entries[0])
	}

	res.Recreated = res.Duplicates > 0
	if list == nil {
		list = []breakpoint.Breakpoint{}
	}
	return list, res
}
