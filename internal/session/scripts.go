package session

import (
	"context"

	"github.com/dshills/branchpoints/internal/command"
)

// scriptAPI is the session as seen from Lua. Scripts only run under s.op,
// so its calls skip the lock.
type scriptAPI struct {
	s *Session
}

func (a scriptAPI) Branch() string { return a.s.Branch() }

func (a scriptAPI) Execute(ctx context.Context, id string) (any, error) {
	return a.s.commands.Execute(ctx, id)
}

func (a scriptAPI) Commands() []command.Info { return a.s.commands.All() }

func (a scriptAPI) Count(branch string) int { return a.s.Count(branch) }

// RunScript runs the Lua file at path against the session.
func (s *Session) RunScript(ctx context.Context, path string) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.scripts.RunFile(ctx, path)
}

// RunScriptString runs a Lua chunk against the session.
func (s *Session) RunScriptString(ctx context.Context, src string) error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.scripts.RunString(ctx, src)
}
