//go:build !linux && !darwin

package platform

// KernelRelease is not available on this platform.
func KernelRelease() string {
	return ""
}
