package store

import (
	"fmt"
	"io"
	"os"
	"time"
)

const backupTimestampLayout = "20060102_150405"

// BackupPath derives the timestamped backup name for a destructive
// operation, e.g. master.json.before_dedup_20240131_120000.
func BackupPath(path, operation string) string {
	return fmt.Sprintf("%s.%s_%s", path, operation, time.Now().Format(backupTimestampLayout))
}

// CreateBackup copies the store to its timestamped backup path and returns
// that path. Every destructive rewrite (repair, dedup, cleanup) backs up
// first; the original is only replaced afterwards.
func CreateBackup(path, operation string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for backup: %w", path, err)
	}
	defer src.Close()

	backupPath := BackupPath(path, operation)
	dst, err := os.OpenFile(backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create backup %s: %w", backupPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("copy %s to backup: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("close backup %s: %w", backupPath, err)
	}
	return backupPath, nil
}
