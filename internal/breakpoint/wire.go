package breakpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireBreakpoint is the persisted JSON shape of a breakpoint.
type wireBreakpoint struct {
	Enabled      bool          `json:"enabled"`
	Condition    string        `json:"condition,omitempty"`
	HitCondition string        `json:"hitCondition,omitempty"`
	LogMessage   string        `json:"logMessage,omitempty"`
	Location     *wireLocation `json:"location,omitempty"`
	FunctionName string        `json:"functionName,omitempty"`
}

type wireLocation struct {
	URI   wireURI     `json:"uri"`
	Range [2]Position `json:"range"`
}

type wireURI struct {
	Path string `json:"path"`
}

// MarshalJSON encodes the breakpoint in the persisted shape. Malformed
// values are written back exactly as they were read.
func (b Breakpoint) MarshalJSON() ([]byte, error) {
	w := wireBreakpoint{
		Enabled:      b.attrs.Enabled,
		Condition:    b.attrs.Condition,
		HitCondition: b.attrs.HitCondition,
		LogMessage:   b.attrs.LogMessage,
	}

	switch b.kind {
	case KindSource:
		w.Location = &wireLocation{
			URI:   wireURI{Path: b.location.Path},
			Range: [2]Position{b.location.Range.Start, b.location.Range.End},
		}
	case KindFunction:
		w.FunctionName = b.function
	default:
		if len(b.raw) == 0 {
			return nil, ErrMalformed
		}
		return b.raw, nil
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes a persisted breakpoint. An entry with both or
// neither of location/functionName decodes without error into a malformed
// value; only invalid JSON is an error.
func (b *Breakpoint) UnmarshalJSON(data []byte) error {
	var w wireBreakpoint
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode breakpoint: %w", err)
	}

	attrs := Attributes{
		Enabled:      w.Enabled,
		Condition:    w.Condition,
		HitCondition: w.HitCondition,
		LogMessage:   w.LogMessage,
	}

	hasLocation := w.Location != nil
	hasFunction := w.FunctionName != ""

	switch {
	case hasLocation && !hasFunction:
		*b = NewSource(Location{
			Path:  w.Location.URI.Path,
			Range: Range{Start: w.Location.Range[0], End: w.Location.Range[1]},
		}, attrs)
	case hasFunction && !hasLocation:
		*b = NewFunction(w.FunctionName, attrs)
	default:
		raw := bytes.TrimSpace(data)
		*b = Breakpoint{
			kind:  KindMalformed,
			attrs: attrs,
			raw:   append([]byte(nil), raw...),
		}
	}
	return nil
}
