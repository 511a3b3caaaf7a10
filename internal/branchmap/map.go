package branchmap

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/branchpoints/internal/breakpoint"
)

// CurrentVersion is the schema version written by this build.
const CurrentVersion = "0.0.2"

// Branch is the breakpoint list remembered for one branch.
// Order is insertion order.
type Branch struct {
	Name        string                  `json:"name"`
	Breakpoints []breakpoint.Breakpoint `json:"breakpoints"`
}

// Map maps branch names to their breakpoints. Names are unique.
type Map struct {
	Version  string   `json:"version"`
	Branches []Branch `json:"branch"`
}

// New returns an empty map with the current schema version.
func New() *Map {
	return &Map{Version: CurrentVersion, Branches: []Branch{}}
}

// Index returns the position of the named branch, or -1.
func (m *Map) Index(name string) int {
	for i, b := range m.Branches {
		if b.Name == name {
			return i
		}
	}
	return -1
}

// Breakpoints returns a copy of the named branch's list.
func (m *Map) Breakpoints(name string) ([]breakpoint.Breakpoint, bool) {
	i := m.Index(name)
	if i < 0 {
		return nil, false
	}
	return breakpoint.Clone(m.Branches[i].Breakpoints), true
}

// Names returns branch names in map order.
func (m *Map) Names() []string {
	names := make([]string, len(m.Branches))
	for i, b := range m.Branches {
		names[i] = b.Name
	}
	return names
}

// Total returns the number of breakpoints across all branches.
func (m *Map) Total() int {
	n := 0
	for _, b := range m.Branches {
		n += len(b.Breakpoints)
	}
	return n
}

// Clone returns a copy that shares no slices with m.
func (m *Map) Clone() *Map {
	out := &Map{
		Version:  m.Version,
		Branches: make([]Branch, len(m.Branches)),
	}
	for i, b := range m.Branches {
		out.Branches[i] = Branch{
			Name:        b.Name,
			Breakpoints: breakpoint.Clone(b.Breakpoints),
		}
	}
	return out
}

// WithBranch returns a new map where the named branch holds bps. The branch
// is appended when absent. m is not modified.
func (m *Map) WithBranch(name string, bps []breakpoint.Breakpoint) *Map {
	out := &Map{
		Version:  m.Version,
		Branches: make([]Branch, len(m.Branches), len(m.Branches)+1),
	}
	copy(out.Branches, m.Branches)

	entry := Branch{Name: name, Breakpoints: breakpoint.Clone(bps)}
	if i := m.Index(name); i >= 0 {
		out.Branches[i] = entry
	} else {
		out.Branches = append(out.Branches, entry)
	}
	return out
}

// Encode serializes the map in the persisted shape.
func (m *Map) Encode() ([]byte, error) {
	out := Map{Version: m.Version, Branches: make([]Branch, len(m.Branches))}
	for i, b := range m.Branches {
		bps := b.Breakpoints
		if bps == nil {
			bps = []breakpoint.Breakpoint{}
		}
		out.Branches[i] = Branch{Name: b.Name, Breakpoints: bps}
	}
	if out.Version == "" {
		out.Version = CurrentVersion
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode branch map: %w", err)
	}
	return data, nil
}

// Decode parses a current-schema blob. Run Migrate first for older blobs.
func Decode(data []byte) (*Map, error) {
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if m.Branches == nil {
		m.Branches = []Branch{}
	}
	return &m, nil
}
