// Package watcher follows single files through fsnotify.
//
// Git and most editors replace files by writing a temporary file and
// renaming it over the target, which drops an inode-level watch on the
// target itself. A FileWatcher therefore watches the parent directory and
// only reports events for the one path it was created for.
package watcher

import (
	"errors"
	"strings"
)

// Common errors returned by watcher operations.
var (
	ErrNoDirectory = errors.New("parent directory does not exist")
)

// Op is a set of file system operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "CREATE"},
	{OpWrite, "WRITE"},
	{OpRemove, "REMOVE"},
	{OpRename, "RENAME"},
	{OpChmod, "CHMOD"},
}

// String joins the names of the set operations with "|".
func (op Op) String() string {
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to the watched file.
type Event struct {
	Path string
	Op   Op
}
