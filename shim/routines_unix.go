//go:build linux || darwin

package shim

import "golang.org/x/sys/unix"

// Routines binds the table to the raw system call wrappers. These are
// the implementations reached when this layer is absent; every
// interposed call delegates to them with its arguments unmodified.
func Routines() RoutineTable {
	return RoutineTable{
		Close:    unix.Close,
		Unlink:   unix.Unlink,
		Unlinkat: unix.Unlinkat,
		Rmdir:    unix.Rmdir,
		Open:     unix.Open,
		Openat:   unix.Openat,
	}
}
