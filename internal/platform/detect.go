package platform

import "runtime"

// OS represents a supported operating system.
type OS string

const (
	MacOS   OS = "darwin"
	Linux   OS = "linux"
	Android OS = "android"
	Unknown OS = "unknown"
)

// Detect returns the current operating system.
func Detect() OS {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	case "android":
		return Android
	default:
		return Unknown
	}
}

// IsLinux returns true if running on Linux or Android.
func IsLinux() bool {
	os := Detect()
	return os == Linux || os == Android
}

// SupportsMulticast returns true if the host can grant the engine a
// multicast capability.
func SupportsMulticast() bool {
	os := Detect()
	return os == MacOS || os == Linux || os == Android
}
