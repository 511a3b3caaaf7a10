package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/branchpoints/internal/breakpoint"
	"github.com/dshills/branchpoints/internal/logging"
	"github.com/dshills/branchpoints/internal/reconcile"
)

// FileVersion is the breakpoints file format version.
const FileVersion = 1

// DefaultFile is the breakpoints file name relative to the workspace.
const DefaultFile = ".branchpoints/breakpoints.json"

type fileFormat struct {
	Version     int                     `json:"version"`
	Breakpoints []breakpoint.Breakpoint `json:"breakpoints"`
}

// Listener receives live breakpoint changes.
type Listener func(ev reconcile.ChangeEvent)

// Subscription represents an active listener registration.
type Subscription struct {
	id   uint64
	host *FileHost
}

// Unsubscribe removes this subscription.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.host != nil {
		s.host.unsubscribe(s.id)
	}
}

// FileHost is a live breakpoint list persisted to a JSON file.
type FileHost struct {
	mu sync.Mutex

	path string
	live []breakpoint.Breakpoint

	listeners map[uint64]Listener
	nextID    uint64

	log *logging.Logger
}

var (
	_ reconcile.Host     = (*FileHost)(nil)
	_ reconcile.Notifier = (*FileHost)(nil)
)

// NewFileHost creates a host backed by path. Call Load to read it.
func NewFileHost(path string, log *logging.Logger) *FileHost {
	if log == nil {
		log = logging.Discard()
	}
	return &FileHost{
		path:      path,
		listeners: make(map[uint64]Listener),
		log:       log.WithComponent("host"),
	}
}

// Path returns the breakpoints file path.
func (h *FileHost) Path() string {
	return h.path
}

// Load reads the file into the live list without notifying listeners.
// A missing file yields an empty list.
func (h *FileHost) Load() error {
	bps, err := h.read()
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.live = bps
	h.mu.Unlock()

	h.log.Debug("loaded %d breakpoint(s) from %s", len(bps), h.path)
	return nil
}

// Breakpoints returns a copy of the live list.
func (h *FileHost) Breakpoints() []breakpoint.Breakpoint {
	h.mu.Lock()
	defer h.mu.Unlock()
	return breakpoint.Clone(h.live)
}

// Add sets breakpoints. Entries already live are skipped.
func (h *FileHost) Add(bps []breakpoint.Breakpoint) error {
	var added []breakpoint.Breakpoint

	h.mu.Lock()
	for _, bp := range bps {
		if err := bp.Validate(); err != nil {
			h.mu.Unlock()
			return fmt.Errorf("add %v: %w", bp, err)
		}
		if breakpoint.Contains(h.live, bp) || breakpoint.Contains(added, bp) {
			continue
		}
		added = append(added, bp)
	}
	if len(added) == 0 {
		h.mu.Unlock()
		return nil
	}
	next := append(breakpoint.Clone(h.live), added...)
	err := h.commitLocked(next)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.emit(reconcile.ChangeEvent{Added: added})
	return nil
}

// Remove clears breakpoints. Entries that are not live are skipped.
func (h *FileHost) Remove(bps []breakpoint.Breakpoint) error {
	var removed, kept []breakpoint.Breakpoint

	h.mu.Lock()
	for _, bp := range h.live {
		if breakpoint.Contains(bps, bp) {
			removed = append(removed, bp)
		} else {
			kept = append(kept, bp)
		}
	}
	if len(removed) == 0 {
		h.mu.Unlock()
		return nil
	}
	err := h.commitLocked(kept)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.emit(reconcile.ChangeEvent{Removed: removed})
	return nil
}

// Update replaces the attributes of live breakpoints with those of the
// matching entries in bps.
func (h *FileHost) Update(bps []breakpoint.Breakpoint) error {
	var changed []breakpoint.Breakpoint

	h.mu.Lock()
	next := breakpoint.Clone(h.live)
	for _, bp := range bps {
		i := breakpoint.IndexOf(next, bp)
		if i < 0 || breakpoint.SameAttributes(next[i], bp) {
			continue
		}
		next[i] = bp
		changed = append(changed, bp)
	}
	if len(changed) == 0 {
		h.mu.Unlock()
		return nil
	}
	err := h.commitLocked(next)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.emit(reconcile.ChangeEvent{Changed: changed})
	return nil
}

// Reload re-reads the file after an external edit and notifies listeners
// with the difference against the previous live list.
func (h *FileHost) Reload() (reconcile.ChangeEvent, error) {
	bps, err := h.read()
	if err != nil {
		return reconcile.ChangeEvent{}, err
	}

	h.mu.Lock()
	ev := Diff(h.live, bps)
	h.live = bps
	h.mu.Unlock()

	if !ev.Empty() {
		h.log.Info("reloaded %s: +%d ~%d -%d", h.path, len(ev.Added), len(ev.Changed), len(ev.Removed))
		h.emit(ev)
	}
	return ev, nil
}

// Diff describes how next differs from prev. Entries present in both with
// different attributes are reported as changed.
func Diff(prev, next []breakpoint.Breakpoint) reconcile.ChangeEvent {
	var ev reconcile.ChangeEvent
	for _, bp := range next {
		i := breakpoint.IndexOf(prev, bp)
		switch {
		case i < 0:
			ev.Added = append(ev.Added, bp)
		case !breakpoint.SameAttributes(prev[i], bp):
			ev.Changed = append(ev.Changed, bp)
		}
	}
	ev.Removed = breakpoint.Difference(prev, next)
	return ev
}

// OnChange registers a listener. Listeners run synchronously on the
// goroutine that made the change and may call back into the host.
func (h *FileHost) OnChange(fn Listener) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	h.listeners[h.nextID] = fn
	return &Subscription{id: h.nextID, host: h}
}

// Subscribe is OnChange in the form of reconcile.Notifier.
func (h *FileHost) Subscribe(fn func(reconcile.ChangeEvent)) func() {
	return h.OnChange(fn).Unsubscribe
}

func (h *FileHost) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, id)
}

func (h *FileHost) emit(ev reconcile.ChangeEvent) {
	h.mu.Lock()
	ids := make([]uint64, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = h.listeners[id]
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// commitLocked writes next to disk and makes it live.
func (h *FileHost) commitLocked(next []breakpoint.Breakpoint) error {
	if err := h.write(next); err != nil {
		return err
	}
	h.live = next
	return nil
}

func (h *FileHost) read() ([]breakpoint.Breakpoint, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.path, err)
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFile, h.path, err)
	}
	if f.Version > FileVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, f.Version)
	}

	out := make([]breakpoint.Breakpoint, 0, len(f.Breakpoints))
	for i, bp := range f.Breakpoints {
		if err := bp.Validate(); err != nil {
			h.log.Warn("%s entry %d skipped: %v", h.path, i, err)
			continue
		}
		out = append(out, bp)
	}
	return out, nil
}

// write replaces the file atomically.
func (h *FileHost) write(bps []breakpoint.Breakpoint) error {
	if bps == nil {
		bps = []breakpoint.Breakpoint{}
	}
	data, err := json.MarshalIndent(fileFormat{Version: FileVersion, Breakpoints: bps}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode breakpoints: %w", err)
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".breakpoints-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("replace %s: %w", h.path, err)
	}
	return nil
}
