package tasks

import (
	"context"

	"github.com/sportarr/sportarr/internal/releasecache"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const CacheSweepTaskID = "cache-sweep"

// RegisterCacheSweepTask registers the daily sweep that evicts expired
// releases from the release cache.
func RegisterCacheSweepTask(sched *scheduler.Scheduler, cache *releasecache.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          CacheSweepTaskID,
		Name:        "Release Cache Sweep",
		Description: "Evicts cached releases past their retention window",
		Cron:        "0 3 * * *",
		Func: func(ctx context.Context) error {
			_, err := cache.SweepExpired(ctx)
			return err
		},
	})
}
