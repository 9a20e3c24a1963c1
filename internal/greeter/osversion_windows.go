//go:build windows

package greeter

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// OSVersion describes the operating system, e.g. "Microsoft Windows NT 10.0.19045".
func OSVersion() string {
	v := windows.RtlGetVersion()
	return fmt.Sprintf("Microsoft Windows NT %d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
}
