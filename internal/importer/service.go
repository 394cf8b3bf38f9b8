// Package importer moves completed downloads into the event library:
// path mapping, video selection, naming, transfer, bookkeeping.
package importer

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/rootfolder"
	"github.com/sportarr/sportarr/internal/library/scanner"
	"github.com/sportarr/sportarr/internal/sport/parser"
)

// ClientResolver looks up download client configurations. Satisfied by
// the downloader service.
type ClientResolver interface {
	Get(ctx context.Context, id int64) (*downloader.DownloadClient, error)
}

// Service imports completed downloads. It implements the download
// monitor's Importer contract.
type Service struct {
	db       *sql.DB
	events   *events.Service
	clients  ClientResolver
	mappings *MappingStore
	roots    *rootfolder.Service
	history  *history.Service
	scanner  *scanner.Service
	logger   zerolog.Logger
}

func NewService(db *sql.DB, eventSvc *events.Service, clients ClientResolver, roots *rootfolder.Service, historySvc *history.Service, logger zerolog.Logger) *Service {
	return &Service{
		db:       db,
		events:   eventSvc,
		clients:  clients,
		mappings: NewMappingStore(db),
		roots:    roots,
		history:  historySvc,
		logger:   logger.With().Str("component", "importer").Logger(),
	}
}

// Mappings exposes the remote path mapping store for the API surface.
func (s *Service) Mappings() *MappingStore { return s.mappings }

// Import moves a completed queue item's video into the library.
func (s *Service) Import(ctx context.Context, item *downloader.QueueItem) error {
	err := s.runImport(ctx, item)
	if err != nil && s.history != nil {
		if _, hErr := s.history.Record(ctx, history.CreateInput{
			EventType: history.EventTypeImportFailed,
			EventID:   item.EventID,
			Source:    item.Title,
			Data:      map[string]any{"error": err.Error()},
		}); hErr != nil {
			s.logger.Warn().Err(hErr).Msg("Failed to record import failure")
		}
	}
	return err
}

func (s *Service) runImport(ctx context.Context, item *downloader.QueueItem) error {
	if item.OutputPath == "" {
		return fmt.Errorf("queue item %d has no output path", item.ID)
	}

	ev, err := s.events.Get(ctx, item.EventID)
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	league, err := s.events.GetLeague(ctx, ev.LeagueID)
	if err != nil {
		return fmt.Errorf("loading league: %w", err)
	}

	localPath, err := s.resolveLocalPath(ctx, item)
	if err != nil {
		return err
	}

	src, size, err := FindLargestVideo(localPath)
	if err != nil {
		return err
	}

	settings, err := s.GetSettings(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Falling back to default import settings")
		settings = DefaultSettings()
	}

	required := size
	if !settings.SkipFreeSpaceCheck {
		required += settings.MinimumFreeSpaceMB << 20
	}
	root, err := s.roots.PickForImport(ctx, required)
	if err != nil {
		if err == rootfolder.ErrNoUsableFolder && !settings.SkipFreeSpaceCheck {
			return fmt.Errorf("%w: need %d bytes", ErrNotEnoughSpace, required)
		}
		return err
	}

	parsed := parser.Parse(item.Title)
	namingCtx := &NamingContext{Event: ev, LeagueName: league.Name, Parsed: parsed}

	folder := ExpandTokens(settings.FolderFormat, namingCtx)
	file := ExpandTokens(settings.FileFormat, namingCtx) + PartSuffix(parsed) + filepath.Ext(src)
	dest := uniquePath(filepath.Join(root.Path, folder, file))

	mode, err := TransferFile(src, dest, settings.TransferMode)
	if err != nil {
		return err
	}

	destInfo, err := os.Stat(dest)
	if err != nil {
		return fmt.Errorf("stat imported file: %w", err)
	}

	relPath, err := filepath.Rel(root.Path, dest)
	if err != nil {
		relPath = filepath.Base(dest)
	}

	input := events.CreateFileInput{
		RelativePath: relPath,
		Path:         dest,
		Size:         destInfo.Size(),
		Quality:      parsed.Quality,
		ReleaseGroup: parsed.Group,
	}
	if parsed.Part != nil {
		name := parsed.Part.Name
		number := parsed.Part.Number
		input.PartName = &name
		input.PartNumber = &number
	}
	if _, err := s.events.AddFile(ctx, ev.ID, input); err != nil {
		return fmt.Errorf("recording event file: %w", err)
	}

	if s.history != nil {
		if _, err := s.history.Record(ctx, history.CreateInput{
			EventType: history.EventTypeImported,
			EventID:   ev.ID,
			Source:    item.Title,
			Quality:   parsed.Quality,
			Data: map[string]any{
				"sourcePath":      src,
				"destinationPath": dest,
				"transferMode":    string(mode),
			},
		}); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to record import history")
		}
	}

	if mode == TransferMove && settings.DeleteEmptyFolders {
		removeEmptyParents(src, localPath)
	}

	s.logger.Info().Str("event", ev.Title).Str("dest", dest).
		Str("mode", string(mode)).Msg("Import complete")
	return nil
}

// resolveLocalPath rewrites the client-reported save path through the
// remote path mappings for the client's host.
func (s *Service) resolveLocalPath(ctx context.Context, item *downloader.QueueItem) (string, error) {
	host := ""
	if item.DownloadClientID != nil && s.clients != nil {
		cfg, err := s.clients.Get(ctx, *item.DownloadClientID)
		if err == nil {
			host = cfg.Host
		} else {
			s.logger.Warn().Err(err).Int64("clientId", *item.DownloadClientID).
				Msg("Could not resolve download client for path mapping")
		}
	}
	return s.mappings.Resolve(ctx, host, item.OutputPath)
}
