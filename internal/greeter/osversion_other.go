//go:build !unix && !windows

package greeter

import "runtime"

// OSVersion falls back to the platform name where no version is available.
func OSVersion() string {
	return runtime.GOOS
}
