package execute

import (
	"golang.org/x/sys/unix"
)

// ElevationHelper is prepended to commands that need root.
const ElevationHelper = "pkexec"

var geteuid = unix.Geteuid

// Elevated returns name and args wrapped in the elevation helper unless the
// process already runs as root.
func Elevated(name string, args ...string) (string, []string) {
	if geteuid() == 0 {
		return name, args
	}
	return ElevationHelper, append([]string{name}, args...)
}

// IsRoot reports whether the process runs with an effective UID of 0.
func IsRoot() bool {
	return geteuid() == 0
}

// Elevator rewrites a command line to run with root privileges.
type Elevator func(name string, args ...string) (string, []string)

// AsIs is an Elevator that leaves commands unchanged.
func AsIs(name string, args ...string) (string, []string) {
	return name, args
}
