//go:build darwin

package identity

import (
	"golang.org/x/sys/unix"
)

// statRef uses fstatat directly; Darwin has no statx.
func statRef(ref PathRef) (ID, error) {
	flags := 0
	if !ref.FollowSymlinks {
		flags |= unix.AT_SYMLINK_NOFOLLOW
	}

	var st unix.Stat_t
	if err := unix.Fstatat(ref.Dirfd, ref.Path, &st, flags); err != nil {
		return ID{}, err
	}
	return ID{Dev: uint64(st.Dev), Ino: st.Ino}, nil
}
