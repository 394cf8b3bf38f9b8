package tasks

import (
	"fmt"

	"github.com/sportarr/sportarr/internal/config"
	"github.com/sportarr/sportarr/internal/rsssync"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const RssSyncTaskID = "rss-sync"

func buildRssSyncCronExpr(intervalMin int) string {
	return fmt.Sprintf("*/%d * * * *", config.ClampRssInterval(intervalMin))
}

// RegisterRssSyncTask registers the RSS sync sweep with the scheduler.
func RegisterRssSyncTask(sched *scheduler.Scheduler, service *rsssync.Service, cfg *config.RssConfig) error {
	if !cfg.Enabled {
		return nil
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          RssSyncTaskID,
		Name:        "RSS Sync",
		Description: "Fetch recent releases from indexer feeds and grab matching events",
		Cron:        buildRssSyncCronExpr(cfg.SyncIntervalMin),
		RunOnStart:  true,
		Func:        service.Run,
	})
}
