package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/robfig/cron/v3"
	"golang.org/x/sys/unix"

	"stageflow/internal/config"
)

func fail(name, path, format string, args ...any) Result {
	return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", path, fmt.Sprintf(format, args...))}
}

// CheckDirectoryAccess verifies that path is a directory the process can
// list, read and write.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail(name, path, "does not exist")
	case err != nil:
		return fail(name, path, "stat: %v", err)
	case !info.IsDir():
		return fail(name, path, "is not a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fail(name, path, "insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

// CheckDatabaseFile reports whether the workflow database exists and is
// writable. A missing file passes because the store creates it on open.
func CheckDatabaseFile(path string) Result {
	const name = "Database"

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Result{Name: name, Passed: true, Detail: path + " (created on first use)"}
	case err != nil:
		return fail(name, path, "stat: %v", err)
	case info.IsDir():
		return fail(name, path, "is a directory")
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK); err != nil {
		return fail(name, path, "insufficient permissions: %v", err)
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))}
}

// CheckSchedules parses both sweep schedules and reports when each fires next.
func CheckSchedules(cfg *config.Config, now time.Time) Result {
	const name = "Sweep schedules"

	specs := []struct{ label, spec string }{
		{"auto", cfg.Workflow.AutoTransitionSchedule},
		{"escalations", cfg.Workflow.EscalationSchedule},
	}
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		schedule, err := cron.ParseStandard(s.spec)
		if err != nil {
			return Result{Name: name, Detail: fmt.Sprintf("%s %q (error: %v)", s.label, s.spec, err)}
		}
		parts = append(parts, fmt.Sprintf("%s %s", s.label, humanize.RelTime(schedule.Next(now), now, "ago", "from now")))
	}
	return Result{Name: name, Passed: true, Detail: "next: " + strings.Join(parts, ", ")}
}
