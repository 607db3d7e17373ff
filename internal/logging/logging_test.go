package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionStart = time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

func TestLogFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("formationlogs", "formationd.20260212_213836.log"),
		LogFilePath("formationlogs", "formationd", sessionStart))
	assert.Equal(t,
		filepath.Join("/var", "log", "formationd", "replay.20260212_213836.log"),
		LogFilePath(filepath.Join("/var", "log", "formationd"), "replay", sessionStart))
}

func TestOpenSessionLog_RotatesSameSecond(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, path, err := OpenSessionLog(dir, "formationd", sessionStart)
	require.NoError(t, err)
	_, err = f.WriteString("first session\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, again, err := OpenSessionLog(dir, "formationd", sessionStart)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	assert.Equal(t, path, again)
	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Equal(t, "first session\n", string(old))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestPruneSessionLogs(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := range 4 {
		p := LogFilePath(dir, "formationd", sessionStart.Add(time.Duration(i)*time.Hour))
		require.NoError(t, os.WriteFile(p, nil, 0o644))
		paths = append(paths, p)
	}
	require.NoError(t, os.WriteFile(paths[0]+".old", nil, 0o644))
	unrelated := []string{"formationd.latest.log", "other.20260212_213836.log", "notes.txt"}
	for _, name := range unrelated {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	removed, err := PruneSessionLogs(dir, "formationd", 2)
	require.NoError(t, err)
	assert.Equal(t, paths[:2], removed)

	for _, p := range paths[2:] {
		assert.FileExists(t, p)
	}
	assert.NoFileExists(t, paths[0]+".old")
	for _, name := range unrelated {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	removed, err = PruneSessionLogs(dir, "formationd", 0)
	require.NoError(t, err)
	assert.Empty(t, removed)
}
