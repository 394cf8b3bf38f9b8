package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// VideoFile is one video found under a root folder.
type VideoFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Service walks root folders for video files.
type Service struct {
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger.With().Str("component", "scanner").Logger()}
}

// Scan walks root and returns every video file that is not a sample.
// Hidden directories and unreadable entries are skipped.
func (s *Service) Scan(ctx context.Context, root string) ([]VideoFile, error) {
	var files []VideoFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable entry")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsVideoFile(path) || IsSampleFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, VideoFile{Path: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
