package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const sessionLayout = "20060102_150405"

// LogFilePath returns the log file for the daemon session started at
// sessionStart: <logsDir>/<service>.<yyyymmdd_hhmmss>.log.
func LogFilePath(logsDir, serviceName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.%s.log", serviceName, sessionStart.Format(sessionLayout)))
}

// OpenSessionLog creates logsDir if needed and opens the session log for
// appending. A file left by a session started in the same second is kept
// as <path>.old.
func OpenSessionLog(logsDir, serviceName string, sessionStart time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating logs dir: %w", err)
	}
	path := LogFilePath(logsDir, serviceName, sessionStart)
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return nil, "", fmt.Errorf("rotating %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("opening log file: %w", err)
	}
	return f, path, nil
}

// PruneSessionLogs removes all but the newest keep session logs of
// serviceName. Session names sort chronologically, so no stat is needed.
// keep <= 0 disables pruning. It returns the removed paths.
func PruneSessionLogs(logsDir, serviceName string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return nil, err
	}

	prefix := serviceName + "."
	var sessions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".log")
		if _, err := time.Parse(sessionLayout, stamp); err != nil {
			continue
		}
		sessions = append(sessions, name)
	}
	if len(sessions) <= keep {
		return nil, nil
	}
	slices.Sort(sessions)

	var removed []string
	var errs []error
	for _, name := range sessions[:len(sessions)-keep] {
		path := filepath.Join(logsDir, name)
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
		_ = os.Remove(path + ".old")
	}
	return removed, errors.Join(errs...)
}
