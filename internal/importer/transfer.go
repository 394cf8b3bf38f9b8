package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// TransferMode selects how files enter the library.
type TransferMode string

const (
	TransferHardlink TransferMode = "hardlink"
	TransferCopy     TransferMode = "copy"
	TransferMove     TransferMode = "move"
)

// TransferFile places src at dst using the requested mode and reports
// the mode actually used. Hardlinks fall back to copy when src and dst
// live on different filesystems.
func TransferFile(src, dst string, mode TransferMode) (TransferMode, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("%w: create directory: %v", ErrTransferFailed, err)
	}

	switch mode {
	case TransferHardlink:
		err := os.Link(src, dst)
		if err == nil {
			return TransferHardlink, nil
		}
		if !isCrossDevice(err) {
			// Filesystems without hardlink support surface assorted
			// errors; copying is always safe.
			var linkErr *os.LinkError
			if !errors.As(err, &linkErr) {
				return "", fmt.Errorf("%w: hardlink: %v", ErrTransferFailed, err)
			}
		}
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		return TransferCopy, nil

	case TransferMove:
		err := os.Rename(src, dst)
		if err == nil {
			return TransferMove, nil
		}
		if !isCrossDevice(err) {
			return "", fmt.Errorf("%w: move: %v", ErrTransferFailed, err)
		}
		// Cross-device move is copy then delete.
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		if err := os.Remove(src); err != nil {
			return "", fmt.Errorf("%w: remove source after move: %v", ErrTransferFailed, err)
		}
		return TransferMove, nil

	default:
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
		return TransferCopy, nil
	}
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: open source: %v", ErrTransferFailed, err)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create destination: %v", ErrTransferFailed, err)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return fmt.Errorf("%w: copy content: %v", ErrTransferFailed, err)
	}
	if err := dstFile.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", ErrTransferFailed, err)
	}
	return nil
}

// uniquePath appends " (1)", " (2)", … before the extension until the
// path does not exist.
func uniquePath(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
