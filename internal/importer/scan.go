package importer

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/library/scanner"
)

// ScanResult summarizes one library scan.
type ScanResult struct {
	FilesChecked int `json:"filesChecked"`
	FilesMissing int `json:"filesMissing"`
	Untracked    int `json:"untracked"`
}

// ScanLibrary reconciles the library's file records with disk. Records
// whose file disappeared are marked missing so the event becomes
// wanted again; videos on disk that no record covers are counted and
// logged.
func (s *Service) ScanLibrary(ctx context.Context) error {
	files, err := s.events.ListFiles(ctx)
	if err != nil {
		return err
	}

	result := ScanResult{}
	tracked := make(map[string]bool, len(files))
	for _, f := range files {
		tracked[f.Path] = true
		if !f.Exists {
			continue
		}
		result.FilesChecked++

		_, statErr := os.Stat(f.Path)
		if statErr == nil {
			continue
		}
		if !errors.Is(statErr, fs.ErrNotExist) {
			s.logger.Warn().Err(statErr).Str("path", f.Path).Msg("Failed to stat library file")
			continue
		}

		if err := s.events.MarkFileMissing(ctx, f.ID); err != nil {
			s.logger.Warn().Err(err).Int64("fileId", f.ID).Msg("Failed to mark file missing")
			continue
		}
		result.FilesMissing++
		s.logger.Info().Str("path", f.Path).Msg("Library file no longer on disk")

		if s.history != nil {
			if _, err := s.history.Record(ctx, history.CreateInput{
				EventType: history.EventTypeFileDeleted,
				EventID:   f.EventID,
				Source:    "library-scan",
				Data:      map[string]any{"path": f.Path},
			}); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to record file deletion")
			}
		}
	}

	if s.scanner != nil && s.roots != nil {
		folders, err := s.roots.List(ctx)
		if err != nil {
			return err
		}
		for _, folder := range folders {
			if !folder.Accessible {
				continue
			}
			videos, err := s.scanner.Scan(ctx, folder.Path)
			if err != nil {
				s.logger.Warn().Err(err).Str("root", folder.Path).Msg("Root folder scan failed")
				continue
			}
			for _, v := range videos {
				if !tracked[v.Path] {
					result.Untracked++
				}
			}
		}
	}

	s.logger.Info().
		Int("checked", result.FilesChecked).
		Int("missing", result.FilesMissing).
		Int("untracked", result.Untracked).
		Msg("Library scan complete")
	return nil
}

// SetScanner enables untracked-file detection during library scans.
func (s *Service) SetScanner(sc *scanner.Service) {
	s.scanner = sc
}
