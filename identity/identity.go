// Package identity resolves filesystem objects to stable identifiers.
//
// An identifier stays the same across renames and across every path the
// object is reachable by, which is what lets a removal observed at one
// path be correlated with an object tracked under another. Identifiers
// are derived from device and inode numbers, so they are only valid
// while the object exists on disk: resolution must happen before the
// object is removed.
package identity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ID is the stable identity of a filesystem object, independent of its
// current path.
type ID struct {
	Dev uint64
	Ino uint64
}

func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Dev, id.Ino)
}

// PathRef describes a resolution target: raw path, optional directory
// descriptor context for *at-style calls, and symlink policy. Removal
// targets never follow symlinks because it is the link entry itself
// that is removed, not whatever it points to.
type PathRef struct {
	Dirfd          int
	Path           string
	FollowSymlinks bool
}

// FromPath builds a reference for a path interpreted relative to the
// current working directory.
func FromPath(path string) PathRef {
	return PathRef{Dirfd: unix.AT_FDCWD, Path: path}
}

// FromPathAt builds a reference for a path interpreted relative to an
// open directory descriptor.
func FromPathAt(dirfd int, path string) PathRef {
	return PathRef{Dirfd: dirfd, Path: path}
}

func (r PathRef) String() string {
	if r.Dirfd == unix.AT_FDCWD {
		return r.Path
	}
	return fmt.Sprintf("dirfd %d: %s", r.Dirfd, r.Path)
}

// Resolver maps a path reference to an identifier. Resolve is called
// at most once per interposed call, while the object still exists.
type Resolver interface {
	Resolve(ref PathRef) (ID, error)
}

// StatResolver resolves identity with the platform stat family.
type StatResolver struct{}

func NewStatResolver() *StatResolver {
	return &StatResolver{}
}

func (*StatResolver) Resolve(ref PathRef) (ID, error) {
	return statRef(ref)
}

// FromFd resolves the identity of an already-open descriptor.
func FromFd(fd int) (ID, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return ID{}, err
	}
	return ID{Dev: uint64(st.Dev), Ino: st.Ino}, nil
}
