package shim

import "github.com/filetrack/removetrace/identity"

// Open delegates and, on success, records the new descriptor's
// identity so a later close can be correlated with the object it
// released. Resolution failure after a successful open leaves the
// cache unpopulated and is otherwise silent; the open result reaches
// the caller untouched either way.
func (s *Shim) Open(path string, flags int, mode uint32) (int, error) {
	var fd int
	err := s.trampoline("open", path, false, func() error {
		var err error
		fd, err = s.orig.Open(path, flags, mode)
		return err
	})
	if err == nil {
		s.remember(fd)
	}
	return fd, err
}

// Openat is Open for directory-relative paths.
func (s *Shim) Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	var fd int
	err := s.trampoline("openat", path, false, func() error {
		var err error
		fd, err = s.orig.Openat(dirfd, path, flags, mode)
		return err
	})
	if err == nil {
		s.remember(fd)
	}
	return fd, err
}

func (s *Shim) remember(fd int) {
	if id, err := identity.FromFd(fd); err == nil {
		s.cache.Put(fd, id)
	}
}
