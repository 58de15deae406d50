package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ledger.sqlite")
	require.NoError(t, os.WriteFile(dbPath, []byte("database bytes"), 0o644))

	now := time.Date(2024, 3, 15, 8, 30, 45, 0, time.UTC)

	t.Run("copies into a timestamped file", func(t *testing.T) {
		backupDir := filepath.Join(dir, "backup")

		dst, err := Backup(dbPath, backupDir, now)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(backupDir, "backup_ledger.sqlite-15-03-24-08-30-45.sqlite"), dst)

		content, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "database bytes", string(content))
	})

	t.Run("missing database", func(t *testing.T) {
		_, err := Backup(filepath.Join(dir, "absent.sqlite"), dir, now)
		assert.Error(t, err)
	})
}
