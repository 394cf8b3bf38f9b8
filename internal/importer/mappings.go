package importer

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
)

// RemotePathMapping translates a download client's reported path into
// a locally mounted one. Host scopes the mapping to one client machine.
type RemotePathMapping struct {
	ID         int64  `json:"id"`
	Host       string `json:"host"`
	RemotePath string `json:"remotePath"`
	LocalPath  string `json:"localPath"`
}

// MappingStore persists remote path mappings.
type MappingStore struct {
	db *sql.DB
}

func NewMappingStore(db *sql.DB) *MappingStore {
	return &MappingStore{db: db}
}

func (m *MappingStore) List(ctx context.Context) ([]*RemotePathMapping, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, host, remote_path, local_path FROM remote_path_mappings ORDER BY host, remote_path`)
	if err != nil {
		return nil, fmt.Errorf("listing remote path mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*RemotePathMapping
	for rows.Next() {
		var rpm RemotePathMapping
		if err := rows.Scan(&rpm.ID, &rpm.Host, &rpm.RemotePath, &rpm.LocalPath); err != nil {
			return nil, fmt.Errorf("scanning remote path mapping: %w", err)
		}
		mappings = append(mappings, &rpm)
	}
	return mappings, rows.Err()
}

func (m *MappingStore) Add(ctx context.Context, rpm *RemotePathMapping) error {
	res, err := m.db.ExecContext(ctx,
		`INSERT INTO remote_path_mappings (host, remote_path, local_path) VALUES (?, ?, ?)`,
		rpm.Host, rpm.RemotePath, rpm.LocalPath)
	if err != nil {
		return fmt.Errorf("adding remote path mapping: %w", err)
	}
	rpm.ID, _ = res.LastInsertId()
	return nil
}

func (m *MappingStore) Delete(ctx context.Context, id int64) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM remote_path_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting remote path mapping: %w", err)
	}
	return nil
}

// Resolve rewrites remotePath for the given client host. The longest
// matching remote prefix wins; an unmapped path comes back unchanged.
// Separators are normalized first; Windows clients report backslashes.
func (m *MappingStore) Resolve(ctx context.Context, host, remotePath string) (string, error) {
	mappings, err := m.List(ctx)
	if err != nil {
		return "", err
	}

	normalized := normalizeSeparators(remotePath)
	var best *RemotePathMapping
	for _, rpm := range mappings {
		if !strings.EqualFold(rpm.Host, host) {
			continue
		}
		if !strings.HasPrefix(normalized, normalizeSeparators(rpm.RemotePath)) {
			continue
		}
		if best == nil || len(rpm.RemotePath) > len(best.RemotePath) {
			best = rpm
		}
	}
	if best == nil {
		return remotePath, nil
	}
	return best.LocalPath + strings.TrimPrefix(normalized, normalizeSeparators(best.RemotePath)), nil
}

// normalizeSeparators rewrites backslash paths to forward slashes.
// os.Open and os.Stat accept forward slashes on every platform.
func normalizeSeparators(p string) string {
	return filepath.ToSlash(p)
}
