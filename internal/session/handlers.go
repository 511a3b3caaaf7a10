package session

import (
	"context"
	"os"
	"path/filepath"

	"github.com/dshills/branchpoints/internal/reconcile"
	"github.com/dshills/branchpoints/internal/watcher"
)

// HandleBranchChange applies the stored breakpoints of branch. It is what
// the detector triggers on a checkout; callers with their own change
// source use it directly.
func (s *Session) HandleBranchChange(branch string) (reconcile.Plan, error) {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return reconcile.Plan{}, err
	}
	return s.applyLocked(branch)
}

// applyLocked applies branch to the host. The caller holds s.op.
func (s *Session) applyLocked(branch string) (reconcile.Plan, error) {
	plan, err := s.reconciler.ApplyBranch(s.current(), branch)
	if err != nil {
		return plan, NewOperationError("apply", branch, err)
	}
	return plan, nil
}

// HandleHostChange folds a live breakpoint change into the active branch
// and persists the result. It is for changes made outside the session,
// such as edits in the editor. It takes the operation lock, so a host must
// not call it from inside Add or Remove; such hosts implement
// reconcile.Notifier instead.
func (s *Session) HandleHostChange(ev reconcile.ChangeEvent) {
	s.op.Lock()
	defer s.op.Unlock()

	if s.checkOpen() != nil {
		return
	}
	s.handleHostChangeLocked(ev)
}

// handleHostChangeLocked is the host listener. Host events are emitted
// while the session already holds s.op: during an apply, a reload, or a
// command that edits the host.
func (s *Session) handleHostChangeLocked(ev reconcile.ChangeEvent) {
	if ev.Empty() {
		return
	}

	branch := s.Branch()
	next, changed := s.reconciler.OnHostChange(s.current(), ev, branch)
	if !changed {
		return
	}
	s.setMap(next)
	s.log.Debug("branch %q updated: +%d ~%d -%d", branch, len(ev.Added), len(ev.Changed), len(ev.Removed))
	s.save(context.Background())
}

// ReloadHost re-reads the live breakpoint file after an external edit.
// It is a no-op for custom hosts.
func (s *Session) ReloadHost() error {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.reloadHostLocked()
}

func (s *Session) reloadHostLocked() error {
	if s.fileHost == nil {
		return nil
	}
	if _, err := s.fileHost.Reload(); err != nil {
		return NewOperationError("reload", s.fileHost.Path(), err)
	}
	return nil
}

// Run watches the branch marker and the live breakpoint file and handles
// their changes on the calling goroutine until ctx is done.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	s.op.Lock()
	if err := s.checkOpen(); err != nil {
		s.op.Unlock()
		return err
	}
	if err := s.detector.Watch(); err != nil {
		s.op.Unlock()
		return NewOperationError("watch", s.detector.Marker(), err)
	}
	branchEvents, branchErrors := s.detector.Events(), s.detector.Errors()
	s.op.Unlock()

	hostWatcher, err := s.watchHostFile()
	if err != nil {
		return err
	}
	var hostEvents <-chan watcher.Event
	var hostErrors <-chan error
	if hostWatcher != nil {
		defer hostWatcher.Close()
		hostEvents, hostErrors = hostWatcher.Events(), hostWatcher.Errors()
	}

	s.log.Info("watching %s", s.cfg.Workspace)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping: %v", ctx.Err())
			return nil

		case ev, ok := <-branchEvents:
			if !ok {
				branchEvents = nil
				continue
			}
			s.op.Lock()
			// Subscribers apply the new branch.
			s.detector.HandleEvent(ev)
			s.op.Unlock()

		case err, ok := <-branchErrors:
			if !ok {
				branchErrors = nil
				continue
			}
			s.log.Error("branch watcher: %v", err)

		case ev, ok := <-hostEvents:
			if !ok {
				hostEvents = nil
				continue
			}
			s.log.Debug("%s %s", ev.Op, ev.Path)
			if err := s.ReloadHost(); err != nil {
				s.log.Error("%v", err)
			}

		case err, ok := <-hostErrors:
			if !ok {
				hostErrors = nil
				continue
			}
			s.log.Error("host watcher: %v", err)
		}
	}
}

// watchHostFile watches the live breakpoint file. It returns nil for
// custom hosts.
func (s *Session) watchHostFile() (*watcher.FileWatcher, error) {
	if s.fileHost == nil {
		return nil, nil
	}

	path := s.fileHost.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, NewOperationError("watch", path, err)
	}

	w, err := watcher.WatchFile(path)
	if err != nil {
		return nil, NewOperationError("watch", path, err)
	}
	return w, nil
}
