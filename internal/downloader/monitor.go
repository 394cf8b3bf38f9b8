package downloader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/downloader/types"
	"github.com/sportarr/sportarr/internal/history"
)

// Importer moves a completed download into the library.
type Importer interface {
	Import(ctx context.Context, item *QueueItem) error
}

// Broadcaster pushes queue changes to connected UIs.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Repeated failures of the same release get it blocklisted so the
// decision engine stops picking it.
const blocklistAfterFailures = 3

// Monitor polls download clients and advances queue items through
// their lifecycle.
type Monitor struct {
	clients     *Service
	queue       *Queue
	blocklist   *Blocklist
	retries     *RetryTracker
	importer    Importer
	broadcaster Broadcaster
	history     *history.Service
	logger      zerolog.Logger
}

func NewMonitor(clients *Service, queue *Queue, blocklist *Blocklist, retries *RetryTracker, importer Importer, broadcaster Broadcaster, logger zerolog.Logger) *Monitor {
	return &Monitor{
		clients:     clients,
		queue:       queue,
		blocklist:   blocklist,
		retries:     retries,
		importer:    importer,
		broadcaster: broadcaster,
		logger:      logger.With().Str("component", "download-monitor").Logger(),
	}
}

// SetHistory enables history recording for failures. Optional.
func (m *Monitor) SetHistory(h *history.Service) {
	m.history = h
}

// Poll walks every active queue item once. Per-item errors are logged
// and skipped so one broken client cannot stall the rest of the queue.
func (m *Monitor) Poll(ctx context.Context) error {
	items, err := m.queue.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	adapters := make(map[int64]types.Client)
	changed := false
	for _, it := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		itemChanged, err := m.pollItem(ctx, it, adapters)
		if err != nil {
			m.logger.Warn().Err(err).Int64("queueItem", it.ID).Str("title", it.Title).
				Msg("Failed to poll queue item")
			continue
		}
		changed = changed || itemChanged
	}

	if changed && m.broadcaster != nil {
		if err := m.broadcaster.Broadcast("queue:updated", nil); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to broadcast queue update")
		}
	}
	return nil
}

func (m *Monitor) pollItem(ctx context.Context, it *QueueItem, adapters map[int64]types.Client) (bool, error) {
	if it.DownloadClientID == nil {
		return false, m.failItem(ctx, it, "queue item has no download client")
	}

	client, ok := adapters[*it.DownloadClientID]
	if !ok {
		cfg, err := m.clients.Get(ctx, *it.DownloadClientID)
		if err != nil {
			return false, err
		}
		client, err = m.clients.newClient(cfg)
		if err != nil {
			return false, err
		}
		adapters[*it.DownloadClientID] = client
	}

	status, err := m.lookup(ctx, client, it)
	if err != nil {
		return false, err
	}
	if status == nil {
		// Gone from the client without completing. Removed by the
		// user, or the client lost it.
		return true, m.failItem(ctx, it, "download no longer present in client")
	}

	return m.applyStatus(ctx, it, client, status)
}

// lookup asks for the item by id first and falls back to a title
// search, backfilling the id when the fallback finds it.
func (m *Monitor) lookup(ctx context.Context, client types.Client, it *QueueItem) (*types.ClientStatus, error) {
	if it.DownloadID != "" {
		status, err := client.GetStatus(ctx, it.DownloadID)
		if err != nil {
			return nil, err
		}
		if status != nil {
			return status, nil
		}
	}

	id, status, err := client.FindByTitle(ctx, it.Title, "")
	if err != nil || status == nil {
		return nil, err
	}
	if id != "" && id != it.DownloadID {
		if err := m.queue.SetDownloadID(ctx, it.ID, id); err != nil {
			return nil, err
		}
		it.DownloadID = id
	}
	return status, nil
}

func (m *Monitor) applyStatus(ctx context.Context, it *QueueItem, client types.Client, status *types.ClientStatus) (bool, error) {
	sizeLeft := status.Size - status.Downloaded
	if sizeLeft < 0 {
		sizeLeft = 0
	}
	if err := m.queue.UpdateProgress(ctx, it.ID, sizeLeft, status.TimeRemaining, status.SavePath); err != nil {
		return false, err
	}
	it.OutputPath = status.SavePath

	next := it.Status
	message := ""
	switch status.Status {
	case types.StatusQueued:
		next = ItemQueued
	case types.StatusDownloading:
		next = ItemDownloading
	case types.StatusPaused:
		next = ItemPaused
	case types.StatusWarning:
		next = ItemDownloading
		message = "download is stalled"
	case types.StatusCompleted:
		next = ItemCompleted
	case types.StatusFailed:
		reason := status.Error
		if reason == "" {
			reason = "download failed in client"
		}
		return true, m.failItem(ctx, it, reason)
	}

	changed := false
	if next != it.Status || message != it.StatusMessage {
		if err := m.queue.SetStatus(ctx, it.ID, next, message); err != nil {
			return false, err
		}
		it.Status = next
		it.StatusMessage = message
		changed = true
	}

	if next == ItemCompleted {
		if err := m.runImport(ctx, it, client); err != nil {
			return true, err
		}
		changed = true
	}
	return changed, nil
}

func (m *Monitor) runImport(ctx context.Context, it *QueueItem, client types.Client) error {
	if m.importer == nil {
		return nil
	}
	if err := m.queue.SetStatus(ctx, it.ID, ItemImporting, ""); err != nil {
		return err
	}
	it.Status = ItemImporting

	if err := m.importer.Import(ctx, it); err != nil {
		m.logger.Error().Err(err).Str("title", it.Title).Msg("Import failed")
		return m.failItem(ctx, it, fmt.Sprintf("import failed: %v", err))
	}

	if err := m.queue.SetStatus(ctx, it.ID, ItemImported, ""); err != nil {
		return err
	}
	it.Status = ItemImported
	m.logger.Info().Str("title", it.Title).Msg("Download imported")

	if m.retries != nil && it.ReleaseGUID != "" {
		if err := m.retries.Clear(ctx, it.EventID, it.ReleaseGUID); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to clear grab failures")
		}
	}

	m.removeIfConfigured(ctx, it, client)
	return nil
}

func (m *Monitor) removeIfConfigured(ctx context.Context, it *QueueItem, client types.Client) {
	cfg, err := m.clients.Get(ctx, *it.DownloadClientID)
	if err != nil || !cfg.RemoveCompleted || it.DownloadID == "" {
		return
	}
	if err := client.Remove(ctx, it.DownloadID, false); err != nil {
		m.logger.Warn().Err(err).Str("downloadId", it.DownloadID).
			Msg("Failed to remove completed download from client")
	}
}

func (m *Monitor) failItem(ctx context.Context, it *QueueItem, reason string) error {
	if err := m.queue.SetFailed(ctx, it.ID, reason); err != nil {
		return err
	}
	it.Status = ItemFailed
	m.logger.Warn().Str("title", it.Title).Str("reason", reason).Msg("Download failed")
	m.record(ctx, history.EventTypeDownloadFailed, it, reason)

	if m.retries == nil || it.ReleaseGUID == "" {
		return nil
	}
	if err := m.retries.RecordFailure(ctx, it.EventID, it.ReleaseGUID); err != nil {
		return err
	}
	attempts, _, err := m.retries.Attempts(ctx, it.EventID, it.ReleaseGUID)
	if err != nil {
		return err
	}
	if attempts >= blocklistAfterFailures && m.blocklist != nil {
		eventID := it.EventID
		entry := &BlocklistEntry{
			EventID:   &eventID,
			Title:     it.Title,
			GUID:      it.ReleaseGUID,
			IndexerID: it.IndexerID,
			Protocol:  it.Protocol,
			Reason:    fmt.Sprintf("failed %d times", attempts),
		}
		if err := m.blocklist.Add(ctx, entry); err != nil {
			return err
		}
		m.record(ctx, history.EventTypeBlocklisted, it, entry.Reason)
	}
	return nil
}

func (m *Monitor) record(ctx context.Context, eventType history.EventType, it *QueueItem, message string) {
	if m.history == nil {
		return
	}
	if _, err := m.history.Record(ctx, history.CreateInput{
		EventType: eventType,
		EventID:   it.EventID,
		Source:    "download-monitor",
		Data: map[string]any{
			"title":   it.Title,
			"guid":    it.ReleaseGUID,
			"message": message,
		},
	}); err != nil {
		m.logger.Warn().Err(err).Str("type", string(eventType)).Msg("Failed to record history")
	}
}
