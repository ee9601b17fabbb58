package modelstore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// IsModelDir reports whether dir looks like a saved model.
func IsModelDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, VocabFile))
	return err == nil && info.Mode().IsRegular()
}

// Discover returns the model directories under root, sorted. root itself is
// included when it is a model directory. A missing root yields no models.
func Discover(root string) ([]string, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if IsModelDir(path) {
			dirs = append(dirs, path)
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}
