package tasks

import (
	"time"

	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const DownloadMonitorTaskID = "download-monitor"

// Queue polling interval while downloads are tracked.
const monitorInterval = 30 * time.Second

// RegisterDownloadMonitorTask registers the queue poll that tracks
// progress, detects completion, and hands finished downloads to the
// importer.
func RegisterDownloadMonitorTask(sched *scheduler.Scheduler, monitor *downloader.Monitor) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          DownloadMonitorTaskID,
		Name:        "Download Monitor",
		Description: "Polls download clients for progress and imports completed downloads",
		Interval:    monitorInterval,
		RunOnStart:  true,
		Func:        monitor.Poll,
	})
}
