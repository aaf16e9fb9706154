//go:build linux

package identity

import (
	"errors"

	"golang.org/x/sys/unix"
)

// statRef prefers statx with STATX_INO, which asks the kernel for the
// minimum needed to build an identity, and falls back to fstatat on
// kernels too old to implement it.
func statRef(ref PathRef) (ID, error) {
	flags := 0
	if !ref.FollowSymlinks {
		flags |= unix.AT_SYMLINK_NOFOLLOW
	}

	var stx unix.Statx_t
	err := unix.Statx(ref.Dirfd, ref.Path, flags, unix.STATX_INO, &stx)
	switch {
	case err == nil:
		return ID{Dev: unix.Mkdev(stx.Dev_major, stx.Dev_minor), Ino: stx.Ino}, nil
	case errors.Is(err, unix.ENOSYS):
		var st unix.Stat_t
		if err := unix.Fstatat(ref.Dirfd, ref.Path, &st, flags); err != nil {
			return ID{}, err
		}
		return ID{Dev: st.Dev, Ino: st.Ino}, nil
	default:
		return ID{}, err
	}
}
