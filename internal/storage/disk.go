package storage

import (
	"io/fs"
	"os"
	"path/filepath"
)

// sidecarSuffixes are the SQLite WAL companions that live next to the
// database file and hold real data until the next checkpoint.
var sidecarSuffixes = []string{"-wal", "-shm"}

// DiskUsageBytes reports the combined on-disk footprint of the given files
// and directories. Directories are summed recursively, a database file is
// counted together with its WAL sidecars, and anything missing or unreadable
// contributes nothing. The count is best effort.
func DiskUsageBytes(paths ...string) int64 {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		total += pathSize(p)
		for _, suffix := range sidecarSuffixes {
			if info, err := os.Stat(p + suffix); err == nil && !info.IsDir() {
				total += info.Size()
			}
		}
	}
	return total
}

func pathSize(path string) int64 {
	var total int64
	filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
