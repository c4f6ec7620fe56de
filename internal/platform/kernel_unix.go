//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// KernelRelease returns the running kernel release, or "" if uname fails.
func KernelRelease() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Release[:])
}
