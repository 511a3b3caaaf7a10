package host

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/branchpoints/internal/branchmap"
	"github.com/dshills/branchpoints/internal/breakpoint"
	"github.com/dshills/branchpoints/internal/reconcile"
)

func fn(name string) breakpoint.Breakpoint {
	return breakpoint.NewFunction(name, breakpoint.Attributes{Enabled: true})
}

func src(path string, line int) breakpoint.Breakpoint {
	return breakpoint.NewSource(breakpoint.Location{
		Path:  path,
		Range: breakpoint.NewRange(line, 0, line, 0),
	}, breakpoint.Attributes{Enabled: true})
}

func newHost(t *testing.T) *FileHost {
	t.Helper()
	h := NewFileHost(filepath.Join(t.TempDir(), "bp", "breakpoints.json"), nil)
	if err := h.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return h
}

func TestLoadMissingFile(t *testing.T) {
	h := newHost(t)
	if got := h.Breakpoints(); len(got) != 0 {
		t.Errorf("Breakpoints() = %v, want empty", got)
	}
}

func TestAddRemovePersist(t *testing.T) {
	h := newHost(t)

	if err := h.Add([]breakpoint.Breakpoint{fn("a"), src("/x.go", 4)}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := h.Remove([]breakpoint.Breakpoint{fn("a")}); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	reopened := NewFileHost(h.Path(), nil)
	if err := reopened.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := reopened.Breakpoints()
	if len(got) != 1 || !breakpoint.Equal(got[0], src("/x.go", 4)) {
		t.Errorf("reloaded = %v, want [/x.go@4:0-4:0]", got)
	}
}

func TestAddEmitsOnlyNewEntries(t *testing.T) {
	h := newHost(t)
	if err := h.Add([]breakpoint.Breakpoint{fn("a")}); err != nil {
		t.Fatal(err)
	}

	var events []reconcile.ChangeEvent
	h.OnChange(func(ev reconcile.ChangeEvent) { events = append(events, ev) })

	if err := h.Add([]breakpoint.Breakpoint{fn("a"), fn("b"), fn("b")}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if len(events) != 1 || len(events[0].Added) != 1 {
		t.Fatalf("events = %+v, want one event adding b", events)
	}
	if name, _ := events[0].Added[0].FunctionName(); name != "b" {
		t.Errorf("added %q, want b", name)
	}

	// Nothing new: no event.
	if err := h.Add([]breakpoint.Breakpoint{fn("a")}); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestAddRejectsMalformed(t *testing.T) {
	h := newHost(t)
	var bad breakpoint.Breakpoint
	if err := h.Add([]breakpoint.Breakpoint{bad}); !errors.Is(err, breakpoint.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestListenerMayReenter(t *testing.T) {
	h := newHost(t)

	var seen int
	h.OnChange(func(ev reconcile.ChangeEvent) {
		seen = len(h.Breakpoints())
	})
	if err := h.Add([]breakpoint.Breakpoint{fn("a"), fn("b")}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if seen != 2 {
		t.Errorf("listener saw %d live breakpoints, want 2", seen)
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHost(t)
	calls := 0
	sub := h.OnChange(func(reconcile.ChangeEvent) { calls++ })
	sub.Unsubscribe()

	if err := h.Add([]breakpoint.Breakpoint{fn("a")}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

func TestUpdateEmitsChanged(t *testing.T) {
	h := newHost(t)
	if err := h.Add([]breakpoint.Breakpoint{fn("a")}); err != nil {
		t.Fatal(err)
	}

	var got reconcile.ChangeEvent
	h.OnChange(func(ev reconcile.ChangeEvent) { got = ev })

	cond := fn("a").WithAttributes(breakpoint.Attributes{Enabled: true, Condition: "n == 3"})
	if err := h.Update([]breakpoint.Breakpoint{cond, fn("missing")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(got.Changed) != 1 || got.Changed[0].Attributes().Condition != "n == 3" {
		t.Errorf("event = %+v, want a changed", got)
	}
}

func TestReloadDiff(t *testing.T) {
	h := newHost(t)
	if err := h.Add([]breakpoint.Breakpoint{fn("keep"), fn("drop"), fn("edit")}); err != nil {
		t.Fatal(err)
	}

	external := `{"version":1,"breakpoints":[
		{"enabled":true,"functionName":"keep"},
		{"enabled":false,"functionName":"edit"},
		{"enabled":true,"functionName":"new"},
		{"enabled":true}
	]}`
	if err := os.WriteFile(h.Path(), []byte(external), 0o644); err != nil {
		t.Fatal(err)
	}

	var emitted []reconcile.ChangeEvent
	h.OnChange(func(ev reconcile.ChangeEvent) { emitted = append(emitted, ev) })

	ev, err := h.Reload()
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(ev.Added) != 1 || len(ev.Changed) != 1 || len(ev.Removed) != 1 {
		t.Fatalf("diff = +%d ~%d -%d, want +1 ~1 -1", len(ev.Added), len(ev.Changed), len(ev.Removed))
	}
	if len(emitted) != 1 {
		t.Errorf("emitted %d events, want 1", len(emitted))
	}
	if n := len(h.Breakpoints()); n != 3 {
		t.Errorf("live = %d, want 3 (malformed skipped)", n)
	}

	// The file is unchanged since the last read: nothing to report.
	ev, err = h.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Empty() || len(emitted) != 1 {
		t.Errorf("second reload reported %+v", ev)
	}
}

func TestReloadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"invalid json", `{"version":`, ErrInvalidFile},
		{"future version", `{"version":2,"breakpoints":[]}`, ErrUnsupportedVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHost(t)
			if err := h.Add([]breakpoint.Breakpoint{fn("a")}); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(h.Path(), []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := h.Reload(); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if n := len(h.Breakpoints()); n != 1 {
				t.Errorf("live = %d after failed reload, want 1", n)
			}
		})
	}
}

func TestReconcilerAgainstFileHost(t *testing.T) {
	h := newHost(t)
	r := reconcile.New(h, nil)

	echoes := 0
	h.OnChange(func(ev reconcile.ChangeEvent) {
		echoes++
		if r.State() != reconcile.StateApplying {
			t.Errorf("event outside apply: %+v", ev)
		}
	})

	if err := h.Add(nil); err != nil {
		t.Fatal(err)
	}

	want := []breakpoint.Breakpoint{src("/a.ts", 1), fn("main")}
	m := branchmap.New().WithBranch("main", want)
	if _, err := r.ApplyBranch(m, "main"); err != nil {
		t.Fatalf("ApplyBranch: %v", err)
	}
	if echoes != 1 {
		t.Errorf("echoes = %d, want 1", echoes)
	}
	got := h.Breakpoints()
	if len(breakpoint.Difference(got, want)) != 0 || len(breakpoint.Difference(want, got)) != 0 {
		t.Errorf("host = %v, want %v", got, want)
	}
}
