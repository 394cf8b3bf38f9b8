package tasks

import (
	"context"
	"time"

	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const HistoryCleanupTaskID = "history-cleanup"

// History entries older than this are pruned.
const historyRetention = 90 * 24 * time.Hour

// RegisterHistoryCleanupTask registers the daily prune of old history
// entries.
func RegisterHistoryCleanupTask(sched *scheduler.Scheduler, historySvc *history.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          HistoryCleanupTaskID,
		Name:        "History Cleanup",
		Description: "Deletes history entries older than the retention period",
		Cron:        "0 2 * * *",
		Func: func(ctx context.Context) error {
			_, err := historySvc.Prune(ctx, historyRetention)
			return err
		},
	})
}
