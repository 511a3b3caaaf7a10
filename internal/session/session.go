package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dshills/branchpoints/internal/branchmap"
	"github.com/dshills/branchpoints/internal/command"
	"github.com/dshills/branchpoints/internal/config"
	"github.com/dshills/branchpoints/internal/host"
	"github.com/dshills/branchpoints/internal/kv"
	"github.com/dshills/branchpoints/internal/logging"
	"github.com/dshills/branchpoints/internal/plugin"
	"github.com/dshills/branchpoints/internal/reconcile"
	"github.com/dshills/branchpoints/internal/vcs"
)

// Options configures a Session. Only Config is required.
type Options struct {
	// Config is the effective configuration.
	Config *config.Config

	// Logger overrides the logger built from Config.
	Logger *logging.Logger

	// Store overrides the SQLite store at Config.StoragePath(). The session
	// does not close a store it was given.
	Store kv.Store

	// Host overrides the file host at Config.BreakpointsFile(). A host that
	// implements reconcile.Notifier is subscribed at Open and may emit from
	// inside Add and Remove. Changes the session did not cause, and all
	// changes of hosts without notifications, go through HandleHostChange,
	// which must not be called from inside a host call.
	Host reconcile.Host

	// Passive opens without applying the active branch and without running
	// the configured scripts, so the host is only touched by explicit
	// operations.
	Passive bool

	// ScriptOutput receives print output of Lua scripts. Defaults to stdout.
	ScriptOutput io.Writer
}

// Session is the explicit context of one workspace.
type Session struct {
	// op serializes every operation that touches the map.
	op sync.Mutex

	cfg     *config.Config
	log     *logging.Logger
	logFile *os.File

	kv      kv.Store
	ownsKV  bool
	store   *branchmap.Store
	persist bool

	mapMu sync.RWMutex
	m     *branchmap.Map

	detector   *vcs.Detector
	branchSub  *vcs.Subscription
	host       reconcile.Host
	fileHost   *host.FileHost
	hostCancel func()
	reconciler *reconcile.Reconciler
	commands   *command.Registry
	scripts    *plugin.Runner

	scriptOutput io.Writer
	passive      bool

	// loadDedup holds the branches rebuilt while loading, until the next
	// Dedup reports them.
	loadDedup []branchmap.DedupResult

	opened  bool
	closed  bool
	running atomic.Bool
}

// New creates a session. Call Open before using it.
func New(opts Options) (*Session, error) {
	if opts.Config == nil {
		return nil, errors.New("session: config is required")
	}

	s := &Session{
		cfg:          opts.Config,
		kv:           opts.Store,
		host:         opts.Host,
		m:            branchmap.New(),
		persist:      true,
		commands:     command.NewRegistry(),
		scriptOutput: opts.ScriptOutput,
		passive:      opts.Passive,
	}
	if s.scriptOutput == nil {
		s.scriptOutput = os.Stdout
	}

	if opts.Logger != nil {
		s.log = opts.Logger
	} else {
		log, f, err := newLogger(opts.Config)
		if err != nil {
			return nil, err
		}
		s.log, s.logFile = log, f
	}

	if err := s.registerCommands(); err != nil {
		return nil, err
	}
	return s, nil
}

// newLogger builds the configured logger. Logging is off unless enabled.
func newLogger(cfg *config.Config) (*logging.Logger, *os.File, error) {
	lc := logging.DefaultConfig()
	lc.Enabled = cfg.Logging.Enabled
	lc.Level = cfg.LogLevel()

	var f *os.File
	if cfg.Logging.Enabled && cfg.LogFile() != "" {
		var err error
		if f, err = logging.OpenFile(cfg.LogFile()); err != nil {
			return nil, nil, err
		}
		lc.Output = f
	}
	return logging.New(lc), f, nil
}

// Open loads the persisted map, repairs it, detects the active branch and
// applies its stored breakpoints to the host. A passive session stops
// before the apply.
func (s *Session) Open(ctx context.Context) error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.opened {
		return nil
	}

	if err := s.openStore(); err != nil {
		return err
	}
	s.loadMap(ctx)

	if err := s.openDetector(); err != nil {
		return err
	}
	if err := s.openHost(); err != nil {
		return err
	}
	s.reconciler = reconcile.New(s.host, s.log)

	opts := []plugin.StateOption{
		plugin.WithExecutionTimeout(s.cfg.ScriptTimeout()),
		plugin.WithOutput(s.scriptOutput),
	}
	s.scripts = plugin.NewRunner(scriptAPI{s}, s.log, opts...)

	s.opened = true
	s.log.Info("session open: workspace=%s branch=%s", s.cfg.Workspace, s.detector.Current())
	if s.passive {
		return nil
	}

	if _, err := s.applyLocked(s.detector.Current()); err != nil {
		s.log.Error("initial apply: %v", err)
	}

	for _, path := range s.cfg.Scripts() {
		if err := s.scripts.RunFile(ctx, path); err != nil {
			s.log.Error("%v", err)
		}
	}
	return nil
}

func (s *Session) openStore() error {
	if s.kv == nil {
		store, err := kv.OpenSQLite(s.cfg.StoragePath(), s.cfg.Workspace)
		if err != nil {
			return NewOperationError("open store", s.cfg.StoragePath(), err)
		}
		s.kv, s.ownsKV = store, true
	}
	s.store = branchmap.NewStore(s.kv, s.cfg.Storage.Key, s.log)
	return nil
}

// loadMap reads, migrates and deduplicates the persisted map. A map that
// cannot be read leaves the session on an empty map with persistence off,
// so the unreadable value is not overwritten.
func (s *Session) loadMap(ctx context.Context) {
	m, migrated, err := s.store.Load(ctx)
	if err != nil {
		s.log.Error("%v; continuing with an empty map, persistence disabled until cleared", err)
		s.setPersist(false)
		s.setMap(branchmap.New())
		return
	}

	deduped, results := branchmap.DedupReport(m, s.log)
	s.loadDedup = recreated(results)
	s.setMap(deduped)
	if migrated || len(s.loadDedup) > 0 {
		s.save(ctx)
	}
}

func (s *Session) openDetector() error {
	root, err := vcs.Discover(s.cfg.Workspace)
	if err != nil {
		if !errors.Is(err, vcs.ErrRepositoryNotFound) {
			return NewOperationError("discover repository", s.cfg.Workspace, err)
		}
		root = s.cfg.Workspace
	}

	d, err := vcs.NewDetector(root, s.log)
	if err != nil {
		return NewOperationError("open detector", root, err)
	}
	s.detector = d
	s.branchSub = d.Subscribe(func(branch string) {
		if _, err := s.applyLocked(branch); err != nil {
			s.log.Error("apply %s: %v", branch, err)
		}
	})
	return nil
}

func (s *Session) openHost() error {
	if s.host == nil {
		fh := host.NewFileHost(s.cfg.BreakpointsFile(), s.log)
		if err := fh.Load(); err != nil {
			return NewOperationError("load host", fh.Path(), err)
		}
		s.fileHost, s.host = fh, fh
	}

	// Notifications arrive while s.op is held by the operation that
	// changed the host.
	if n, ok := s.host.(reconcile.Notifier); ok {
		s.hostCancel = n.Subscribe(s.handleHostChangeLocked)
	}
	return nil
}

// Close releases every resource the session owns.
func (s *Session) Close() error {
	s.op.Lock()
	defer s.op.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.hostCancel != nil {
		s.hostCancel()
	}
	if s.branchSub != nil {
		s.branchSub.Unsubscribe()
	}
	if s.detector != nil {
		errs = append(errs, s.detector.Close())
	}
	if s.scripts != nil {
		errs = append(errs, s.scripts.Close())
	}
	if s.ownsKV && s.kv != nil {
		errs = append(errs, s.kv.Close())
	}
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
	}
	return errors.Join(errs...)
}

// Config returns the session configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Logger returns the session logger.
func (s *Session) Logger() *logging.Logger {
	return s.log
}

// Map returns a copy of the current branch map.
func (s *Session) Map() *branchmap.Map {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.m.Clone()
}

func (s *Session) current() *branchmap.Map {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.m
}

func (s *Session) setMap(m *branchmap.Map) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.m = m
}

// Branch returns the active branch identifier.
func (s *Session) Branch() string {
	if s.detector == nil {
		return vcs.Unversioned
	}
	return s.detector.Current()
}

// Host returns the live breakpoint host.
func (s *Session) Host() reconcile.Host {
	return s.host
}

// Commands returns the command registry.
func (s *Session) Commands() *command.Registry {
	return s.commands
}

// Persistent reports whether map changes are written to the store.
func (s *Session) Persistent() bool {
	s.mapMu.RLock()
	defer s.mapMu.RUnlock()
	return s.persist
}

func (s *Session) setPersist(on bool) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	s.persist = on
}

// save persists the current map. Failures are logged and the in-memory map
// is kept.
func (s *Session) save(ctx context.Context) {
	if err := s.trySave(ctx); err != nil {
		s.log.Error("%v", err)
	}
}

func (s *Session) trySave(ctx context.Context) error {
	if !s.Persistent() {
		return NewOperationError("save", s.store.Key(), ErrReadOnly)
	}
	if err := s.store.Save(ctx, s.current()); err != nil {
		return NewOperationError("save", s.store.Key(), err)
	}
	return nil
}

func (s *Session) checkOpen() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.opened:
		return ErrNotOpen
	}
	return nil
}

// String describes the session for logs.
func (s *Session) String() string {
	return fmt.Sprintf("session(%s)", s.cfg.Workspace)
}
