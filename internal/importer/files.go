package importer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sportarr/sportarr/internal/library/scanner"
)

// FindLargestVideo walks a download path and returns the largest video
// file that is not a sample. The path may also point directly at a
// single file.
func FindLargestVideo(path string) (string, int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return "", 0, ErrSourceMissing
	}
	if err != nil {
		return "", 0, fmt.Errorf("stat download path: %w", err)
	}

	if !info.IsDir() {
		if !scanner.IsVideoFile(path) || scanner.IsSampleFile(info.Name()) {
			return "", 0, ErrNoVideoFile
		}
		return path, info.Size(), nil
	}

	var largestPath string
	var largestSize int64
	err = filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil // unreadable entries don't sink the walk
		}
		if fi.IsDir() {
			return nil
		}
		if !scanner.IsVideoFile(p) || scanner.IsSampleFile(fi.Name()) {
			return nil
		}
		if fi.Size() > largestSize {
			largestSize = fi.Size()
			largestPath = p
		}
		return nil
	})
	if err != nil {
		return "", 0, fmt.Errorf("walk download path: %w", err)
	}
	if largestPath == "" {
		return "", 0, ErrNoVideoFile
	}
	return largestPath, largestSize, nil
}

// removeEmptyParents deletes the source's parent directories up to (and
// excluding) stop, as long as they are empty.
func removeEmptyParents(path, stop string) {
	dir := filepath.Dir(path)
	stop = filepath.Clean(stop)
	for dir != stop && len(dir) > len(stop) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
