//go:build unix

package greeter

import (
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

// OSVersion describes the operating system and kernel release, e.g.
// "Linux 6.8.0-45-generic".
func OSVersion() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return runtime.GOOS
	}
	sysname := unix.ByteSliceToString(uts.Sysname[:])
	release := unix.ByteSliceToString(uts.Release[:])
	if sysname == "" {
		sysname = runtime.GOOS
	}
	return strings.TrimSpace(sysname + " " + release)
}
