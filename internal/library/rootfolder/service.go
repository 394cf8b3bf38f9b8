// Package rootfolder manages the library's storage roots.
package rootfolder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	ErrNotFound          = errors.New("root folder not found")
	ErrPathNotFound      = errors.New("path does not exist")
	ErrPathNotDirectory  = errors.New("path is not a directory")
	ErrPathAlreadyExists = errors.New("root folder path already exists")
	ErrNoUsableFolder    = errors.New("no accessible root folder with enough free space")
)

// RootFolder is one storage root. FreeSpace is read live from the
// filesystem, not persisted.
type RootFolder struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	Accessible bool   `json:"accessible"`
	FreeSpace  int64  `json:"freeSpace"`
}

// Service provides root folder operations.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger

	// diskFree is swappable for tests.
	diskFree func(path string) (int64, error)
}

func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		logger:   logger.With().Str("component", "rootfolder").Logger(),
		diskFree: DiskFree,
	}
}

// Add registers a path as a storage root. The path must exist and be a
// directory.
func (s *Service) Add(ctx context.Context, path string) (*RootFolder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, ErrPathNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking path: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrPathNotDirectory
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO root_folders (path) VALUES (?)`, abs)
	if err != nil {
		// UNIQUE(path)
		return nil, ErrPathAlreadyExists
	}
	id, _ := res.LastInsertId()

	s.logger.Info().Str("path", abs).Msg("Root folder added")
	return s.describe(&RootFolder{ID: id, Path: abs}), nil
}

func (s *Service) Get(ctx context.Context, id int64) (*RootFolder, error) {
	var rf RootFolder
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path FROM root_folders WHERE id = ?`, id).Scan(&rf.ID, &rf.Path)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting root folder: %w", err)
	}
	return s.describe(&rf), nil
}

// List returns all roots with live accessibility and free space.
func (s *Service) List(ctx context.Context) ([]*RootFolder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path FROM root_folders ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("listing root folders: %w", err)
	}
	defer rows.Close()

	var folders []*RootFolder
	for rows.Next() {
		var rf RootFolder
		if err := rows.Scan(&rf.ID, &rf.Path); err != nil {
			return nil, fmt.Errorf("scanning root folder: %w", err)
		}
		folders = append(folders, s.describe(&rf))
	}
	return folders, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM root_folders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting root folder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// PickForImport chooses the accessible root with the most free space
// that can still hold requiredBytes.
func (s *Service) PickForImport(ctx context.Context, requiredBytes int64) (*RootFolder, error) {
	folders, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var best *RootFolder
	for _, rf := range folders {
		if !rf.Accessible || rf.FreeSpace < requiredBytes {
			continue
		}
		if best == nil || rf.FreeSpace > best.FreeSpace {
			best = rf
		}
	}
	if best == nil {
		return nil, ErrNoUsableFolder
	}
	return best, nil
}

func (s *Service) describe(rf *RootFolder) *RootFolder {
	info, err := os.Stat(rf.Path)
	if err != nil || !info.IsDir() {
		return rf
	}
	rf.Accessible = true
	if free, err := s.diskFree(rf.Path); err == nil {
		rf.FreeSpace = free
	} else {
		s.logger.Warn().Err(err).Str("path", rf.Path).Msg("Failed to read free space")
	}
	return rf
}
