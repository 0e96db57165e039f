package pagecache

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Cleanup deletes every file below dir and keeps dir itself. Subdirectories
// are removed once they are empty. Entries whose name starts with "." are
// never touched, which also keeps in-flight temp files of Entry.Write alive.
//
// Cleanup refuses to run against the filesystem root and returns false for a
// missing, non-directory or unreadable dir. It also returns false when a
// file could not be removed.
func Cleanup(fsys afero.Fs, dir string) bool {
	return deleteAll(fsys, dir, true)
}

// deleteAll empties directory; unless keep is set the directory is removed
// afterwards if nothing (hidden entries included) is left in it.
func deleteAll(fsys afero.Fs, directory string, keep bool) bool {
	if directory == "" {
		return false
	}
	directory = filepath.Clean(directory)
	// 永远检查根目录，避免配置错误时清空整个文件系统。
	if directory == string(filepath.Separator) || directory == filepath.VolumeName(directory)+string(filepath.Separator) {
		return false
	}

	info, err := fsys.Stat(directory)
	if err != nil || !info.IsDir() {
		return false
	}

	entries, err := afero.ReadDir(fsys, directory)
	if err != nil {
		return false
	}

	ok := true
	remaining := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			remaining++
			continue
		}
		path := filepath.Join(directory, entry.Name())
		if entry.IsDir() {
			if !deleteAll(fsys, path, false) {
				ok = false
			}
			if exists, _ := afero.DirExists(fsys, path); exists {
				remaining++
			}
			continue
		}
		if err := fsys.Remove(path); err != nil {
			ok = false
			remaining++
		}
	}

	if keep || remaining > 0 {
		return ok
	}
	if err := fsys.Remove(directory); err != nil {
		return false
	}
	return ok
}
