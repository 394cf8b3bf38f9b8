package tasks

import (
	"context"
	"time"

	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const QueuePruneTaskID = "queue-prune"

// Terminal queue items stay visible for this long before pruning.
const queueGracePeriod = 7 * 24 * time.Hour

// RegisterQueuePruneTask registers the daily removal of imported and
// failed queue items past the grace period.
func RegisterQueuePruneTask(sched *scheduler.Scheduler, queue *downloader.Queue) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          QueuePruneTaskID,
		Name:        "Queue Prune",
		Description: "Removes imported and failed downloads past the grace period",
		Cron:        "0 1 * * *",
		Func: func(ctx context.Context) error {
			_, err := queue.PruneTerminal(ctx, queueGracePeriod)
			return err
		},
	})
}
