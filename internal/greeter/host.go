package greeter

import (
	"os"
	"strings"
)

// MachineName returns the host name. It is never empty.
func MachineName() string {
	if name, err := os.Hostname(); err == nil && strings.TrimSpace(name) != "" {
		return name
	}
	if name := strings.TrimSpace(os.Getenv("HOSTNAME")); name != "" {
		return name
	}
	return "localhost"
}
