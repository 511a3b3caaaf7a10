package vcs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/branchpoints/internal/logging"
	"github.com/dshills/branchpoints/internal/watcher"
)

// Listener is called with the new branch identifier after a change.
type Listener func(branch string)

// Subscription represents an active listener registration.
type Subscription struct {
	id       uint64
	detector *Detector
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.detector != nil {
		s.detector.unsubscribe(s.id)
	}
}

// Detector tracks the active branch of one repository.
type Detector struct {
	mu sync.Mutex

	root   string
	marker string // empty when unversioned

	current string

	listeners map[uint64]Listener
	nextID    uint64

	watcher *watcher.FileWatcher
	closed  bool

	log *logging.Logger
}

// NewDetector creates a detector for the repository rooted at root and
// reads the initial branch. A root without a repository yields an
// Unversioned detector.
func NewDetector(root string, log *logging.Logger) (*Detector, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}

	d := &Detector{
		root:      absRoot,
		current:   Unversioned,
		listeners: make(map[uint64]Listener),
		log:       log.WithComponent("vcs"),
	}

	marker, err := MarkerPath(absRoot)
	switch {
	case errors.Is(err, ErrNotRepository):
		d.log.Info("no repository at %s, using %s", absRoot, Unversioned)
		return d, nil
	case err != nil:
		return nil, err
	}
	if _, err := os.Stat(marker); err != nil {
		d.log.Info("no HEAD at %s, using %s", marker, Unversioned)
		return d, nil
	}

	d.marker = marker
	if branch, err := d.read(); err != nil {
		d.log.Error("read %s: %v", marker, err)
	} else {
		d.current = branch
	}
	return d, nil
}

// Root returns the repository root.
func (d *Detector) Root() string {
	return d.root
}

// Marker returns the HEAD path, or "" when unversioned.
func (d *Detector) Marker() string {
	return d.marker
}

// Versioned reports whether a repository was found.
func (d *Detector) Versioned() bool {
	return d.marker != ""
}

// Current returns the last known branch identifier.
func (d *Detector) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Subscribe registers a listener for branch changes.
func (d *Detector) Subscribe(fn Listener) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.listeners[d.nextID] = fn
	return &Subscription{id: d.nextID, detector: d}
}

func (d *Detector) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.listeners, id)
}

// Refresh re-reads the marker and notifies listeners when the branch
// differs from the last known value. Read failures are logged and leave the
// last known value in place.
func (d *Detector) Refresh() (string, bool) {
	if d.marker == "" {
		return Unversioned, false
	}

	branch, err := d.read()
	if err != nil {
		d.log.Error("read %s: %v", d.marker, err)
		return d.Current(), false
	}

	d.mu.Lock()
	if branch == d.current {
		d.mu.Unlock()
		return branch, false
	}
	prev := d.current
	d.current = branch
	listeners := d.snapshotLocked()
	d.mu.Unlock()

	d.log.Info("branch changed: %s -> %s", prev, branch)
	for _, fn := range listeners {
		fn(branch)
	}
	return branch, true
}

// snapshotLocked returns listeners in registration order.
func (d *Detector) snapshotLocked() []Listener {
	ids := make([]uint64, 0, len(d.listeners))
	for id := range d.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = d.listeners[id]
	}
	return out
}

func (d *Detector) read() (string, error) {
	content, err := os.ReadFile(d.marker)
	if err != nil {
		return "", err
	}
	return ParseHead(content)
}

// Watch installs a file watch on the marker. It is a no-op for an
// unversioned workspace.
func (d *Detector) Watch() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDetectorClosed
	}
	if d.marker == "" || d.watcher != nil {
		return nil
	}

	w, err := watcher.WatchFile(d.marker)
	if err != nil {
		return fmt.Errorf("watch %s: %w", d.marker, err)
	}

	d.watcher = w
	d.log.Debug("watching %s", d.marker)
	return nil
}

// Events returns the marker's file events. It returns nil when no watch is
// installed; receiving from a nil channel blocks forever, so callers can
// select on it unconditionally.
func (d *Detector) Events() <-chan watcher.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Events()
}

// Errors returns watcher errors, or nil when no watch is installed.
func (d *Detector) Errors() <-chan error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Errors()
}

// HandleEvent processes one marker file event.
func (d *Detector) HandleEvent(ev watcher.Event) (string, bool) {
	d.log.Debug("%s %s", ev.Op, ev.Path)
	if ev.Op.Has(watcher.OpRemove) && !ev.Op.Has(watcher.OpCreate) {
		// HEAD is briefly absent during a rename; the create follows.
		if _, err := os.Stat(d.marker); err != nil {
			return d.Current(), false
		}
	}
	return d.Refresh()
}

// Close removes the watch and all listeners.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.listeners = make(map[uint64]Listener)

	if d.watcher != nil {
		err := d.watcher.Close()
		d.watcher = nil
		return err
	}
	return nil
}
