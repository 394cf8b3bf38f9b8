package importer

import "errors"

var (
	// ErrNoVideoFile indicates the download contained nothing importable.
	ErrNoVideoFile = errors.New("no video file found in download")

	// ErrNotEnoughSpace indicates the free-space preflight failed.
	ErrNotEnoughSpace = errors.New("not enough free space on target drive")

	// ErrSourceMissing indicates the resolved source path does not exist.
	ErrSourceMissing = errors.New("download path does not exist")

	// ErrTransferFailed indicates the file could not be placed in the
	// library.
	ErrTransferFailed = errors.New("file transfer failed")
)
