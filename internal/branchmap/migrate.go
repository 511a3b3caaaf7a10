package branchmap

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// LegacyVersion is the schema assumed for blobs without a version field.
const LegacyVersion = "0.0.1"

// Migrate upgrades a persisted blob to CurrentVersion. The returned flag is
// true when the blob was rewritten. Current blobs are returned unchanged.
//
// Schema 0.0.1 differs from 0.0.2 in the location shape:
//
//	"uri":   "/a.ts"  or  {"fsPath": "/a.ts"}    ->  {"path": "/a.ts"}
//	"range": {"start": {...}, "end": {...}}      ->  [{...}, {...}]
func Migrate(blob []byte) ([]byte, bool, error) {
	if !gjson.ValidBytes(blob) {
		return nil, false, ErrInvalidBlob
	}

	version := gjson.GetBytes(blob, "version")
	switch {
	case version.String() == CurrentVersion:
		return blob, false, nil
	case !version.Exists(), version.String() == LegacyVersion:
		out, err := migrateLegacy(blob)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownVersion, version.String())
	}
}

// migrateLegacy rewrites 0.0.1 locations in place.
func migrateLegacy(blob []byte) ([]byte, error) {
	out := append([]byte(nil), blob...)
	var err error

	branches := gjson.GetBytes(blob, "branch")
	if !branches.IsArray() {
		if out, err = sjson.SetRawBytes(out, "branch", []byte("[]")); err != nil {
			return nil, fmt.Errorf("migrate branch list: %w", err)
		}
	}

	for i, branch := range branches.Array() {
		for j, bp := range branch.Get("breakpoints").Array() {
			prefix := fmt.Sprintf("branch.%d.breakpoints.%d.location", i, j)

			uri := bp.Get("location.uri")
			switch {
			case uri.Type == gjson.String:
				out, err = sjson.SetBytes(out, prefix+".uri", map[string]string{"path": uri.String()})
			case uri.IsObject() && !uri.Get("path").Exists() && uri.Get("fsPath").Exists():
				out, err = sjson.SetBytes(out, prefix+".uri", map[string]string{"path": uri.Get("fsPath").String()})
			}
			if err != nil {
				return nil, fmt.Errorf("migrate %s.uri: %w", prefix, err)
			}

			rng := bp.Get("location.range")
			if rng.IsObject() {
				raw := "[" + rawOrZero(rng.Get("start")) + "," + rawOrZero(rng.Get("end")) + "]"
				if out, err = sjson.SetRawBytes(out, prefix+".range", []byte(raw)); err != nil {
					return nil, fmt.Errorf("migrate %s.range: %w", prefix, err)
				}
			}
		}
	}

	if out, err = sjson.SetBytes(out, "version", CurrentVersion); err != nil {
		return nil, fmt.Errorf("migrate version: %w", err)
	}
	return out, nil
}

func rawOrZero(r gjson.Result) string {
	if !r.Exists() {
		return `{"line":0,"character":0}`
	}
	return r.Raw
}
