package breakpoint

import (
	"fmt"
	"strconv"
)

// Kind represents the variant of a breakpoint.
type Kind int

const (
	// KindMalformed is a decoded entry with both or neither anchor set.
	// It is also the zero value.
	KindMalformed Kind = iota
	// KindSource is a breakpoint anchored to a source location.
	KindSource
	// KindFunction is a breakpoint anchored to a function name.
	KindFunction
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindFunction:
		return "function"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Position is a zero-based line/character pair.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// String returns "line:character".
func (p Position) String() string {
	return strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Character)
}

// Range is an ordered pair of positions. Start <= End is assumed.
type Range struct {
	Start Position
	End   Position
}

// NewRange builds a range from two line/character pairs.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{
		Start: Position{Line: startLine, Character: startChar},
		End:   Position{Line: endLine, Character: endChar},
	}
}

// String returns "l:c-l:c". Two ranges are equal iff their strings are equal.
func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Location anchors a source breakpoint. Identity is plain path string
// equality plus range equality; paths are not normalized.
type Location struct {
	Path  string
	Range Range
}

// String returns "path@range".
func (l Location) String() string {
	return l.Path + "@" + l.Range.String()
}

// Attributes are the non-identity properties of a breakpoint.
// Empty strings mean the attribute is absent.
type Attributes struct {
	Enabled      bool
	Condition    string
	HitCondition string
	LogMessage   string
}

// Breakpoint is a source or function breakpoint.
type Breakpoint struct {
	kind     Kind
	location Location
	function string
	attrs    Attributes

	// raw holds the original JSON of a malformed entry so it round-trips.
	raw []byte
}

// NewSource creates a breakpoint anchored to a location.
func NewSource(loc Location, attrs Attributes) Breakpoint {
	return Breakpoint{kind: KindSource, location: loc, attrs: attrs}
}

// NewFunction creates a breakpoint anchored to a function name.
func NewFunction(name string, attrs Attributes) Breakpoint {
	return Breakpoint{kind: KindFunction, function: name, attrs: attrs}
}

// Kind returns the breakpoint variant.
func (b Breakpoint) Kind() Kind {
	return b.kind
}

// Location returns the location of a source breakpoint.
func (b Breakpoint) Location() (Location, bool) {
	if b.kind != KindSource {
		return Location{}, false
	}
	return b.location, true
}

// FunctionName returns the name of a function breakpoint.
func (b Breakpoint) FunctionName() (string, bool) {
	if b.kind != KindFunction {
		return "", false
	}
	return b.function, true
}

// Attributes returns the non-identity attributes.
func (b Breakpoint) Attributes() Attributes {
	return b.attrs
}

// Enabled reports whether the breakpoint is enabled.
func (b Breakpoint) Enabled() bool {
	return b.attrs.Enabled
}

// WithAttributes returns a copy with the given attributes.
func (b Breakpoint) WithAttributes(attrs Attributes) Breakpoint {
	b.attrs = attrs
	return b
}

// Validate returns ErrMalformed for values that are not a valid variant.
func (b Breakpoint) Validate() error {
	switch b.kind {
	case KindSource, KindFunction:
		return nil
	default:
		return ErrMalformed
	}
}

// Materialize returns a copy suitable for handing to the host.
func (b Breakpoint) Materialize() (Breakpoint, error) {
	if err := b.Validate(); err != nil {
		return Breakpoint{}, fmt.Errorf("%w: %v", ErrUnconstructible, err)
	}
	b.raw = nil
	return b, nil
}

// Key returns the identity key. Equal breakpoints share a key; malformed
// values return an empty key.
func (b Breakpoint) Key() string {
	switch b.kind {
	case KindSource:
		return "src\x00" + b.location.Path + "\x00" + b.location.Range.String()
	case KindFunction:
		return "fn\x00" + b.function
	default:
		return ""
	}
}

// String returns a human-readable description.
func (b Breakpoint) String() string {
	switch b.kind {
	case KindSource:
		return b.location.String()
	case KindFunction:
		return "func " + b.function
	default:
		return "malformed(" + string(b.raw) + ")"
	}
}

// Equal reports whether a and b have the same identity.
// Source breakpoints compare path and range, function breakpoints compare
// name. Different kinds and malformed values are never equal.
func Equal(a, b Breakpoint) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindSource:
		return a.location.Path == b.location.Path && a.location.Range == b.location.Range
	case KindFunction:
		return a.function == b.function
	default:
		return false
	}
}

// SameAttributes reports whether a and b carry identical attributes.
func SameAttributes(a, b Breakpoint) bool {
	return a.attrs == b.attrs
}

// IndexOf returns the index of the first entry in list equal to bp, or -1.
func IndexOf(list []Breakpoint, bp Breakpoint) int {
	for i, candidate := range list {
		if Equal(candidate, bp) {
			return i
		}
	}
	return -1
}

// Contains reports whether list holds an entry equal to bp.
func Contains(list []Breakpoint, bp Breakpoint) bool {
	return IndexOf(list, bp) >= 0
}

// Difference returns the entries of a with no equal counterpart in b,
// in the order they appear in a.
func Difference(a, b []Breakpoint) []Breakpoint {
	var out []Breakpoint
	for _, bp := range a {
		if !Contains(b, bp) {
			out = append(out, bp)
		}
	}
	return out
}

// Clone returns a copy of list.
func Clone(list []Breakpoint) []Breakpoint {
	if list == nil {
		return nil
	}
	out := make([]Breakpoint, len(list))
	copy(out, list)
	return out
}
