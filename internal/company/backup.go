package company

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// BackupName returns <name>_backup_<yyyyMMdd_HHmmss><ext> next to path.
func BackupName(path string, at time.Time) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_backup_" + at.Format("20060102_150405") + ext
}

// backupFile copies path to its timestamped backup name. An existing backup
// with the same name is never overwritten.
func backupFile(path string, at time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", eris.Wrap(err, "company: open registry for backup")
	}
	defer src.Close() //nolint:errcheck

	name := BackupName(path, at)
	dst, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", eris.Wrap(err, "company: create backup")
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return "", eris.Wrap(err, "company: copy backup")
	}
	if err := dst.Close(); err != nil {
		return "", eris.Wrap(err, "company: close backup")
	}
	return name, nil
}
