package sqlite

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backup copies the ledger file into backupDir under a timestamped name and
// returns the path of the copy. The caller is expected to run it before a
// run persists anything, while no connection holds the write lock.
func Backup(dbPath, backupDir string, now time.Time) (string, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return "", fmt.Errorf("stat database %s: %w", dbPath, err)
	}

	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory %s: %w", backupDir, err)
	}

	name := fmt.Sprintf("backup_%s-%s.sqlite",
		filepath.Base(dbPath), now.Format("02-01-06-15-04-05"))
	dst := filepath.Join(backupDir, name)

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open database for backup: %w", err)
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("copy database to %s: %w", dst, err)
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	return dst, nil
}
