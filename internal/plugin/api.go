package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/branchpoints/internal/command"
	"github.com/dshills/branchpoints/internal/logging"
)

// ModuleName is the global table scripts use.
const ModuleName = "bp"

// Session is what scripts can reach.
type Session interface {
	// Branch returns the active branch identifier.
	Branch() string

	// Execute runs a registered command.
	Execute(ctx context.Context, id string) (any, error)

	// Commands lists registered commands.
	Commands() []command.Info

	// Count returns the stored breakpoint count for branch.
	Count(branch string) int
}

// Runner executes scripts with the bp module installed.
type Runner struct {
	state   *State
	session Session
	log     *logging.Logger
}

// NewRunner creates a runner bound to session.
func NewRunner(session Session, log *logging.Logger, opts ...StateOption) *Runner {
	if log == nil {
		log = logging.Discard()
	}
	r := &Runner{
		state:   NewState(opts...),
		session: session,
		log:     log.WithComponent("plugin"),
	}
	r.state.RegisterModule(ModuleName, map[string]lua.LGFunction{
		"branch":   r.branch,
		"execute":  r.execute,
		"commands": r.commands,
		"count":    r.count,
		"log":      r.logMessage,
	})
	return r
}

// RunFile executes the script at path.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	r.log.Debug("running %s", path)
	if err := r.state.DoFile(ctx, path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// RunString executes a Lua chunk.
func (r *Runner) RunString(ctx context.Context, src string) error {
	if err := r.state.DoString(ctx, src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

// Close releases the Lua state.
func (r *Runner) Close() error {
	return r.state.Close()
}

// branch() -> string
func (r *Runner) branch(L *lua.LState) int {
	L.Push(lua.LString(r.session.Branch()))
	return 1
}

// execute(id) -> result
func (r *Runner) execute(L *lua.LState) int {
	id := L.CheckString(1)
	if id == "" {
		L.ArgError(1, "id cannot be empty")
		return 0
	}

	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := r.session.Execute(ctx, id)
	if err != nil {
		L.RaiseError("execute %s: %v", id, err)
		return 0
	}
	L.Push(toLValue(L, result))
	return 1
}

// commands() -> {{id=, title=, category=}, ...}
func (r *Runner) commands(L *lua.LState) int {
	tbl := L.NewTable()
	for _, info := range r.session.Commands() {
		entry := L.NewTable()
		entry.RawSetString("id", lua.LString(info.ID))
		entry.RawSetString("title", lua.LString(info.Title))
		entry.RawSetString("category", lua.LString(info.Category))
		tbl.Append(entry)
	}
	L.Push(tbl)
	return 1
}

// count(branch?) -> number
func (r *Runner) count(L *lua.LState) int {
	branch := L.OptString(1, r.session.Branch())
	L.Push(lua.LNumber(r.session.Count(branch)))
	return 1
}

// log(msg)
func (r *Runner) logMessage(L *lua.LState) int {
	r.log.Info("%s", L.CheckString(1))
	return 0
}

// toLValue converts a command result to a Lua value. Values other than
// scalars, slices and maps go through their JSON form.
func toLValue(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case []any:
		tbl := L.NewTable()
		for _, item := range val {
			tbl.Append(toLValue(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLValue(L, item))
		}
		return tbl
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return lua.LString(fmt.Sprint(val))
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return lua.LString(string(data))
		}
		return toLValue(L, generic)
	}
}
