package tasks

import (
	"github.com/sportarr/sportarr/internal/autosearch"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const ScheduledSearchTaskID = "scheduled-search"

// RegisterScheduledSearchTask registers the hourly search for monitored
// events that are still missing files.
func RegisterScheduledSearchTask(sched *scheduler.Scheduler, service *autosearch.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          ScheduledSearchTaskID,
		Name:        "Scheduled Search",
		Description: "Searches indexers for monitored events without files",
		Cron:        "15 * * * *",
		Func:        service.Run,
	})
}
