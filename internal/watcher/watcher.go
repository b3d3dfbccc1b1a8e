// Package watcher reports changes to individual files.
//
// Editors commonly save by writing a temporary file and renaming it over
// the original, which replaces the inode a direct watch would follow. The
// watcher therefore watches each file's parent directory and filters the
// directory's events down to the watched file names.
package watcher

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrWatcherClosed   = errors.New("watcher is closed")
	ErrAlreadyWatching = errors.New("path is already being watched")
	ErrNotWatching     = errors.New("path is not being watched")
	ErrPathNotExist    = errors.New("path does not exist")
)

// Op is a set of file operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	// OpRename means the file was renamed away. A rename onto the file
	// arrives as OpCreate.
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
	var parts []string
	for _, n := range opNames {
		if op.Has(n.op) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Has reports whether every operation in o is set.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a change to a watched file.
type Event struct {
	// Path is the absolute path of the watched file.
	Path      string
	Op        Op
	Timestamp time.Time
}

// Watcher monitors individual files. Events for one path arrive in the
// order they were observed.
type Watcher interface {
	Watch(path string) error
	Unwatch(path string) error

	// Events is closed by Close.
	Events() <-chan Event

	// Errors is closed by Close.
	Errors() <-chan error

	Close() error
}

// Filter returns false to discard an event.
type Filter func(event Event) bool

// IgnoreChmod drops permission-only changes, which never alter content.
func IgnoreChmod(event Event) bool {
	return event.Op != OpChmod
}
