package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pirakansa/addonrepo/pkg/config"
)

// BackupFile copies an existing file to <path>.<timestamp>.bak. It returns
// the backup path, or "" when nothing was written.
func BackupFile(path string, strategy string, now time.Time) (string, error) {
	if strategy != config.BackupTimestamp {
		return "", nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	ts := now.Format("20060102150405")
	backupPath := fmt.Sprintf("%s.%s.bak", path, ts)
	if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
		return "", err
	}
	return backupPath, os.WriteFile(backupPath, content, 0o644)
}

// CopyFile copies src to dst, creating parent directories.
func CopyFile(src, dst string) error {
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, content, 0o644)
}
