package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/railsim/formation/internal/config"
	"github.com/railsim/formation/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.DBConfig{
		Host:     "db",
		Port:     "5433",
		Username: "u",
		Password: "p",
		Database: "formations",
	})

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=formations sslmode=disable", dsn)
}

func TestGetSqliteDB_MemoryDatabasesAreIsolated(t *testing.T) {
	a, err := GetSqliteDB("")
	require.NoError(t, err)
	b, err := GetSqliteDB("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&model.Formation{ID: 1, Size: 2}).Error)

	assert.True(t, a.Migrator().HasTable(&model.Formation{}))
	assert.False(t, b.Migrator().HasTable(&model.Formation{}))
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&model.Formation{ID: 7, Size: 3}).Error)

	path := filepath.Join(t.TempDir(), "dump.db")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	require.NoError(t, DumpMemoryDBToDisk(db, path))

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var got model.Formation
	require.NoError(t, disk.First(&got, 7).Error)
	assert.Equal(t, 3, got.Size)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)

	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}
