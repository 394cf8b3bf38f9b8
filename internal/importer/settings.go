package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Settings governs how completed downloads enter the library.
type Settings struct {
	FileFormat         string       `json:"fileFormat"`
	FolderFormat       string       `json:"folderFormat"`
	TransferMode       TransferMode `json:"transferMode"`
	MinimumFreeSpaceMB int64        `json:"minimumFreeSpaceMb"`
	SkipFreeSpaceCheck bool         `json:"skipFreeSpaceCheck"`
	DeleteEmptyFolders bool         `json:"deleteEmptyFolders"`
}

func DefaultSettings() Settings {
	return Settings{
		FileFormat:         DefaultFileFormat,
		FolderFormat:       DefaultFolderFormat,
		TransferMode:       TransferHardlink,
		MinimumFreeSpaceMB: 100,
	}
}

// GetSettings loads the single settings row. Before the row is first
// written it returns DefaultSettings.
func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	var st Settings
	var skip, deleteEmpty int
	err := s.db.QueryRowContext(ctx, `
		SELECT file_format, folder_format, transfer_mode, minimum_free_space_mb,
			skip_free_space_check, delete_empty_folders
		FROM media_management_settings WHERE id = 1`).
		Scan(&st.FileFormat, &st.FolderFormat, &st.TransferMode,
			&st.MinimumFreeSpaceMB, &skip, &deleteEmpty)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), fmt.Errorf("loading media management settings: %w", err)
	}
	st.SkipFreeSpaceCheck = skip != 0
	st.DeleteEmptyFolders = deleteEmpty != 0
	return st, nil
}

// SaveSettings persists the single settings row.
func (s *Service) SaveSettings(ctx context.Context, st Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO media_management_settings
			(id, file_format, folder_format, transfer_mode, minimum_free_space_mb,
			 skip_free_space_check, delete_empty_folders)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_format = excluded.file_format,
			folder_format = excluded.folder_format,
			transfer_mode = excluded.transfer_mode,
			minimum_free_space_mb = excluded.minimum_free_space_mb,
			skip_free_space_check = excluded.skip_free_space_check,
			delete_empty_folders = excluded.delete_empty_folders`,
		st.FileFormat, st.FolderFormat, string(st.TransferMode),
		st.MinimumFreeSpaceMB, boolToInt(st.SkipFreeSpaceCheck), boolToInt(st.DeleteEmptyFolders))
	if err != nil {
		return fmt.Errorf("saving media management settings: %w", err)
	}
	return nil
}

// EnsureSettings writes st only when no settings row exists yet, so the
// config file seeds first boot but edits made through the API survive
// restarts.
func (s *Service) EnsureSettings(ctx context.Context, st Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO media_management_settings
			(id, file_format, folder_format, transfer_mode, minimum_free_space_mb,
			 skip_free_space_check, delete_empty_folders)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		st.FileFormat, st.FolderFormat, string(st.TransferMode),
		st.MinimumFreeSpaceMB, boolToInt(st.SkipFreeSpaceCheck), boolToInt(st.DeleteEmptyFolders))
	if err != nil {
		return fmt.Errorf("seeding media management settings: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
