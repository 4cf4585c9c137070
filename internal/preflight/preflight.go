// Package preflight holds the checks evaluated before any provider runs.
package preflight

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"
)

// Error indicates a pre-flight check failed before updating could proceed.
type Error struct {
	Check   string // e.g. "disk_space", "package_manager_idle"
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("preflight check %q failed: %s", e.Check, e.Message)
}

// DefaultPackageManagers are the processes that hold the locks our providers need.
var DefaultPackageManagers = []string{"rpm-ostree", "bootc", "dnf", "dnf5", "flatpak", "brew", "uupd"}

var (
	diskUsage    = disk.UsageWithContext
	processNames = runningProcessNames
)

// DiskSpace requires at least minFreeMB megabytes free on the filesystem
// holding path. A zero minimum disables the check.
func DiskSpace(path string, minFreeMB uint64) func(context.Context) error {
	return func(ctx context.Context) error {
		if minFreeMB == 0 {
			return nil
		}
		usage, err := diskUsage(ctx, path)
		if err != nil {
			return &Error{Check: "disk_space", Message: fmt.Sprintf("failed to check disk space on %s: %v", path, err)}
		}
		freeMB := usage.Free / (1024 * 1024)
		if freeMB < minFreeMB {
			return &Error{
				Check:   "disk_space",
				Message: fmt.Sprintf("insufficient disk space on %s: %d MB free, minimum %d MB required", path, freeMB, minFreeMB),
			}
		}
		return nil
	}
}

// PackageManagerIdle rejects a run while any of the named processes is
// already running, since it would hold the package database lock.
func PackageManagerIdle(names ...string) func(context.Context) error {
	if len(names) == 0 {
		names = DefaultPackageManagers
	}
	return func(ctx context.Context) error {
		running, err := processNames(ctx)
		if err != nil {
			return &Error{Check: "package_manager_idle", Message: fmt.Sprintf("failed to list processes: %v", err)}
		}

		var busy []string
		for _, n := range names {
			if running[strings.ToLower(n)] {
				busy = append(busy, n)
			}
		}
		if len(busy) > 0 {
			sort.Strings(busy)
			return &Error{
				Check:   "package_manager_idle",
				Message: "already running: " + strings.Join(busy, ", "),
			}
		}
		return nil
	}
}

func runningProcessNames(ctx context.Context) (map[string]bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names[strings.ToLower(filepath.Base(name))] = true
	}
	return names, nil
}
