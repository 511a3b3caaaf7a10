package command

import (
	"context"
	"errors"
	"testing"
)

func noop(context.Context) (any, error) { return nil, nil }

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Command{
		ID:    "branchpoints.echo",
		Title: "Echo",
		Handler: func(context.Context) (any, error) {
			return "hello", nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if !r.Has("branchpoints.echo") {
		t.Error("Has() = false")
	}
	got, err := r.Execute(context.Background(), "branchpoints.echo")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %v, want hello", got)
	}
}

func TestRegisterErrors(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Command{ID: "a", Handler: noop}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cmd  Command
		want error
	}{
		{"duplicate", Command{ID: "a", Handler: noop}, ErrDuplicate},
		{"no id", Command{Handler: noop}, ErrInvalid},
		{"no handler", Command{ID: "b"}, ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register(tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	_ = r.Register(Command{ID: "fail", Handler: func(context.Context) (any, error) { return nil, boom }})
	_ = r.Register(Command{ID: "panic", Handler: func(context.Context) (any, error) { panic("bad") }})

	if _, err := r.Execute(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if _, err := r.Execute(context.Background(), "fail"); !errors.Is(err, boom) {
		t.Errorf("fail: err = %v, want boom", err)
	}
	if _, err := r.Execute(context.Background(), "panic"); !errors.Is(err, ErrPanic) {
		t.Errorf("panic: err = %v, want ErrPanic", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Execute(ctx, "fail"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: err = %v, want context.Canceled", err)
	}
}

func TestAllSortedAndUnregister(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		if err := r.Register(Command{ID: id, Title: id, Handler: noop}); err != nil {
			t.Fatal(err)
		}
	}

	all := r.All()
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" || all[2].ID != "c" {
		t.Errorf("All() = %+v, want sorted a b c", all)
	}

	if !r.Unregister("b") {
		t.Error("Unregister(b) = false")
	}
	if r.Unregister("b") {
		t.Error("second Unregister(b) = true")
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}
