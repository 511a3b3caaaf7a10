package reconcile

import (
	"errors"
	"testing"

	"github.com/dshills/branchpoints/internal/branchmap"
	"github.com/dshills/branchpoints/internal/breakpoint"
)

// fakeHost is an in-memory host that reports every call and can emit
// change events synchronously, as a real editor does.
type fakeHost struct {
	live    []breakpoint.Breakpoint
	calls   []string
	emit    func(ChangeEvent)
	failAdd error
}

func (h *fakeHost) Breakpoints() []breakpoint.Breakpoint {
	return breakpoint.Clone(h.live)
}

func (h *fakeHost) Add(bps []breakpoint.Breakpoint) error {
	h.calls = append(h.calls, "add")
	if h.failAdd != nil {
		return h.failAdd
	}
	h.live = append(h.live, bps...)
	if h.emit != nil {
		h.emit(ChangeEvent{Added: bps})
	}
	return nil
}

func (h *fakeHost) Remove(bps []breakpoint.Breakpoint) error {
	h.calls = append(h.calls, "remove")
	var kept []breakpoint.Breakpoint
	for _, bp := range h.live {
		if !breakpoint.Contains(bps, bp) {
			kept = append(kept, bp)
		}
	}
	h.live = kept
	if h.emit != nil {
		h.emit(ChangeEvent{Removed: bps})
	}
	return nil
}

func src(path string, sl, sc, el, ec int) breakpoint.Breakpoint {
	return breakpoint.NewSource(breakpoint.Location{
		Path:  path,
		Range: breakpoint.NewRange(sl, sc, el, ec),
	}, breakpoint.Attributes{Enabled: true})
}

func fn(name string) breakpoint.Breakpoint {
	return breakpoint.NewFunction(name, breakpoint.Attributes{Enabled: true})
}

func malformed(t *testing.T) breakpoint.Breakpoint {
	t.Helper()
	var bp breakpoint.Breakpoint
	if err := bp.UnmarshalJSON([]byte(`{"enabled":true}`)); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	return bp
}

func sameSet(a, b []breakpoint.Breakpoint) bool {
	return len(breakpoint.Difference(a, b)) == 0 && len(breakpoint.Difference(b, a)) == 0
}

func TestApplyBranchAddsMissing(t *testing.T) {
	host := &fakeHost{}
	r := New(host, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{src("/a.ts", 1, 0, 1, 5)})

	plan, err := r.ApplyBranch(m, "main")
	if err != nil {
		t.Fatalf("ApplyBranch: %v", err)
	}
	if len(plan.ToAdd) != 1 || len(plan.ToRemove) != 0 {
		t.Fatalf("plan = +%d -%d, want +1 -0", len(plan.ToAdd), len(plan.ToRemove))
	}
	if plan.ID == "" {
		t.Error("plan ID should be set")
	}
	if len(host.live) != 1 {
		t.Fatalf("host has %d breakpoints, want 1", len(host.live))
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v, want idle", r.State())
	}
}

func TestApplyBranchAddsBeforeRemoving(t *testing.T) {
	host := &fakeHost{live: []breakpoint.Breakpoint{fn("stale")}}
	r := New(host, nil)
	m := branchmap.New().WithBranch("dev", []breakpoint.Breakpoint{fn("fresh")})

	plan, err := r.ApplyBranch(m, "dev")
	if err != nil {
		t.Fatalf("ApplyBranch: %v", err)
	}
	if len(plan.ToAdd) != 1 || len(plan.ToRemove) != 1 {
		t.Fatalf("plan = +%d -%d, want +1 -1", len(plan.ToAdd), len(plan.ToRemove))
	}
	if len(host.calls) != 2 || host.calls[0] != "add" || host.calls[1] != "remove" {
		t.Errorf("calls = %v, want [add remove]", host.calls)
	}

	stored, _ := m.Breakpoints("dev")
	if !sameSet(host.live, stored) {
		t.Errorf("host = %v, want %v", host.live, stored)
	}
}

func TestApplyBranchIdempotent(t *testing.T) {
	host := &fakeHost{live: []breakpoint.Breakpoint{fn("a"), src("/x.go", 3, 0, 3, 0)}}
	r := New(host, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{
		src("/x.go", 3, 0, 3, 0),
		fn("b"),
	})

	if _, err := r.ApplyBranch(m, "main"); err != nil {
		t.Fatalf("first ApplyBranch: %v", err)
	}
	calls := len(host.calls)

	plan, err := r.ApplyBranch(m, "main")
	if err != nil {
		t.Fatalf("second ApplyBranch: %v", err)
	}
	if !plan.Empty() {
		t.Errorf("second plan = +%d -%d, want empty", len(plan.ToAdd), len(plan.ToRemove))
	}
	if len(host.calls) != calls {
		t.Errorf("second apply made host calls: %v", host.calls[calls:])
	}
}

func TestApplyBranchEmptyOrMissingLeavesHost(t *testing.T) {
	tests := []struct {
		name   string
		m      *branchmap.Map
		branch string
	}{
		{"missing", branchmap.New(), "feature"},
		{"empty", branchmap.New().WithBranch("feature", []breakpoint.Breakpoint{}), "feature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := &fakeHost{live: []breakpoint.Breakpoint{fn("keep")}}
			r := New(host, nil)

			plan, err := r.ApplyBranch(tt.m, tt.branch)
			if err != nil {
				t.Fatalf("ApplyBranch: %v", err)
			}
			if !plan.Empty() {
				t.Errorf("plan should be empty")
			}
			if len(host.calls) != 0 {
				t.Errorf("host calls = %v, want none", host.calls)
			}
			if len(host.live) != 1 {
				t.Errorf("host lost breakpoints: %v", host.live)
			}
		})
	}
}

func TestApplyBranchSkipsUnconstructible(t *testing.T) {
	host := &fakeHost{}
	r := New(host, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{malformed(t), fn("ok")})

	plan, err := r.ApplyBranch(m, "main")
	if !errors.Is(err, breakpoint.ErrUnconstructible) {
		t.Fatalf("err = %v, want ErrUnconstructible", err)
	}
	if len(plan.ToAdd) != 1 {
		t.Fatalf("ToAdd = %v, want the valid entry only", plan.ToAdd)
	}
	if len(host.live) != 1 {
		t.Errorf("host = %v, want 1 entry", host.live)
	}
}

func TestApplyBranchHostErrorReleases(t *testing.T) {
	boom := errors.New("boom")
	host := &fakeHost{failAdd: boom}
	r := New(host, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{fn("f")})

	_, err := r.ApplyBranch(m, "main")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if r.State() != StateIdle {
		t.Errorf("state = %v after failure, want idle", r.State())
	}
}

func TestApplyBranchIgnoresEchoedEvents(t *testing.T) {
	host := &fakeHost{live: []breakpoint.Breakpoint{fn("old")}}
	r := New(host, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{fn("new")})

	echoes := 0
	host.emit = func(ev ChangeEvent) {
		echoes++
		if r.State() != StateApplying {
			t.Errorf("event delivered in state %v", r.State())
		}
		got, changed := r.OnHostChange(m, ev, "main")
		if changed || got != m {
			t.Errorf("map changed by echoed event %+v", ev)
		}
	}

	if _, err := r.ApplyBranch(m, "main"); err != nil {
		t.Fatalf("ApplyBranch: %v", err)
	}
	if echoes != 2 {
		t.Errorf("echoes = %d, want 2", echoes)
	}
	stored, _ := m.Breakpoints("main")
	if len(stored) != 1 {
		t.Errorf("stored = %v, want unchanged", stored)
	}
}

func TestAcquireRejectsReentry(t *testing.T) {
	r := New(&fakeHost{}, nil)

	release, err := r.acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := r.acquire(); !errors.Is(err, ErrBusy) {
		t.Errorf("second acquire err = %v, want ErrBusy", err)
	}
	release()

	if r.State() != StateIdle {
		t.Errorf("state = %v, want idle", r.State())
	}
	release, err = r.acquire()
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release()
}

func TestNoHost(t *testing.T) {
	r := New(nil, nil)
	if _, err := r.ApplyBranch(branchmap.New(), "main"); !errors.Is(err, ErrNoHost) {
		t.Errorf("err = %v, want ErrNoHost", err)
	}
}

func TestOnHostChangeAdded(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New()

	out, changed := r.OnHostChange(m, ChangeEvent{Added: []breakpoint.Breakpoint{fn("a"), src("/a.go", 1, 0, 1, 0)}}, "main")
	if !changed {
		t.Fatal("expected change")
	}
	got, ok := out.Breakpoints("main")
	if !ok || len(got) != 2 {
		t.Fatalf("main = %v, want 2 entries", got)
	}
	if m.Index("main") >= 0 {
		t.Error("input map was modified")
	}

	// Already present entries are not appended twice.
	again, _ := r.OnHostChange(out, ChangeEvent{Added: []breakpoint.Breakpoint{fn("a")}}, "main")
	got, _ = again.Breakpoints("main")
	if len(got) != 2 {
		t.Errorf("main = %v, want 2 entries", got)
	}
}

func TestOnHostChangeChanged(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{fn("a"), fn("b")})

	updated := fn("b").WithAttributes(breakpoint.Attributes{Enabled: false, Condition: "x > 1"})
	out, changed := r.OnHostChange(m, ChangeEvent{Changed: []breakpoint.Breakpoint{updated}}, "main")
	if !changed {
		t.Fatal("expected change")
	}

	got, _ := out.Breakpoints("main")
	if len(got) != 2 {
		t.Fatalf("main = %v, want 2 entries", got)
	}
	if got[1].Attributes().Condition != "x > 1" || got[1].Enabled() {
		t.Errorf("entry 1 attrs = %+v, want updated", got[1].Attributes())
	}

	orig, _ := m.Breakpoints("main")
	if orig[1].Attributes().Condition != "" {
		t.Error("input map was modified")
	}
}

func TestOnHostChangeRemoved(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{fn("a"), fn("b"), fn("c")})

	out, changed := r.OnHostChange(m, ChangeEvent{Removed: []breakpoint.Breakpoint{fn("b")}}, "main")
	if !changed {
		t.Fatal("expected change")
	}
	got, _ := out.Breakpoints("main")
	want := []breakpoint.Breakpoint{fn("a"), fn("c")}
	if len(got) != len(want) {
		t.Fatalf("main = %v, want %v", got, want)
	}
	for i := range want {
		if !breakpoint.Equal(got[i], want[i]) {
			t.Errorf("main[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOnHostChangeUnmatchedIsNoop(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New().WithBranch("main", []breakpoint.Breakpoint{fn("a")})

	ev := ChangeEvent{
		Changed: []breakpoint.Breakpoint{fn("ghost")},
		Removed: []breakpoint.Breakpoint{src("/none.go", 1, 0, 1, 0)},
	}
	out, changed := r.OnHostChange(m, ev, "main")
	if changed || out != m {
		t.Errorf("unmatched event changed the map")
	}
}

func TestOnHostChangeCreatesBranch(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New()

	out, changed := r.OnHostChange(m, ChangeEvent{Removed: []breakpoint.Breakpoint{fn("x")}}, "feature")
	if !changed {
		t.Fatal("expected the branch to be created")
	}
	got, ok := out.Breakpoints("feature")
	if !ok || len(got) != 0 {
		t.Errorf("feature = %v (%v), want empty list", got, ok)
	}
}

func TestOnHostChangeIgnoresMalformed(t *testing.T) {
	r := New(&fakeHost{}, nil)
	m := branchmap.New().WithBranch("main", nil)

	out, changed := r.OnHostChange(m, ChangeEvent{Added: []breakpoint.Breakpoint{malformed(t)}}, "main")
	if changed || out != m {
		t.Error("malformed add should be ignored")
	}
}

func TestRoundTripThroughHost(t *testing.T) {
	host := &fakeHost{}
	r := New(host, nil)
	m := branchmap.New()

	host.emit = func(ev ChangeEvent) {
		m, _ = r.OnHostChange(m, ev, "main")
	}
	// User edits happen while idle and are folded in.
	if err := host.Add([]breakpoint.Breakpoint{fn("a"), src("/b.go", 2, 0, 2, 4)}); err != nil {
		t.Fatal(err)
	}
	stored, _ := m.Breakpoints("main")
	if !sameSet(stored, host.live) {
		t.Fatalf("stored = %v, want %v", stored, host.live)
	}

	// Clearing the host and applying restores the stored set.
	host.emit = nil
	host.live = nil
	if _, err := r.ApplyBranch(m, "main"); err != nil {
		t.Fatalf("ApplyBranch: %v", err)
	}
	if !sameSet(stored, host.live) {
		t.Errorf("host = %v, want %v", host.live, stored)
	}
}

func TestStateString(t *testing.T) {
	if StateIdle.String() != "idle" || StateApplying.String() != "applying" {
		t.Error("unexpected state names")
	}
	if State(9).String() != "unknown" {
		t.Error("unknown state should say so")
	}
}
