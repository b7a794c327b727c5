//go:build unix

package platform

import (
	"golang.org/x/sys/unix"
)

// Host reads platform info from uname(2).
func Host() (Info, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Info{}, err
	}

	machine := unix.ByteSliceToString(u.Machine[:])
	return Info{
		System:    unix.ByteSliceToString(u.Sysname[:]),
		Node:      unix.ByteSliceToString(u.Nodename[:]),
		Release:   unix.ByteSliceToString(u.Release[:]),
		Version:   unix.ByteSliceToString(u.Version[:]),
		Machine:   machine,
		Processor: machine,
	}, nil
}
