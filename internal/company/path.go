package company

import (
	"os"
	"path/filepath"
)

// ResolvePath finds the registry file named rel by walking up from start.
// When several ancestors hold a copy, the largest file wins (the others are
// usually stale templates); ties go to the nearest. With no copy anywhere the
// path under start is returned so that Open creates it there.
func ResolvePath(start, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}

	best := ""
	var bestSize int64 = -1
	dir := start
	for {
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() && info.Size() > bestSize {
			best, bestSize = candidate, info.Size()
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if best == "" {
		return filepath.Join(start, rel)
	}
	return best
}
