package tasks

import (
	"github.com/sportarr/sportarr/internal/importer"
	"github.com/sportarr/sportarr/internal/scheduler"
)

const LibraryScanTaskID = "library-scan"

// RegisterLibraryScanTask registers the nightly scan that reconciles
// library file records with what is actually on disk.
func RegisterLibraryScanTask(sched *scheduler.Scheduler, importSvc *importer.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          LibraryScanTaskID,
		Name:        "Library Scan",
		Description: "Marks missing files and reports untracked videos in root folders",
		Cron:        "30 4 * * *",
		Func:        importSvc.ScanLibrary,
	})
}
