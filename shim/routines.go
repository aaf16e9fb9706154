package shim

import "fmt"

// RoutineTable holds the genuine OS implementations of every
// interposed routine, the ones a call would reach if this layer were
// absent. The table is bound once during Setup and read-only after
// that, so interposed calls read it without further synchronization.
type RoutineTable struct {
	Close    func(fd int) error
	Unlink   func(path string) error
	Unlinkat func(dirfd int, path string, flags int) error
	Rmdir    func(path string) error
	Open     func(path string, flags int, mode uint32) (int, error)
	Openat   func(dirfd int, path string, flags int, mode uint32) (int, error)
}

// resolve verifies that every routine has a genuine delegate. A
// missing delegate is fatal: the shim cannot preserve call semantics
// without one, so interception must not begin.
func (t RoutineTable) resolve() error {
	missing := ""
	switch {
	case t.Close == nil:
		missing = "close"
	case t.Unlink == nil:
		missing = "unlink"
	case t.Unlinkat == nil:
		missing = "unlinkat"
	case t.Rmdir == nil:
		missing = "rmdir"
	case t.Open == nil:
		missing = "open"
	case t.Openat == nil:
		missing = "openat"
	}
	if missing != "" {
		return fmt.Errorf("failed to resolve original %s routine", missing)
	}
	return nil
}
