package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sportarr/sportarr/internal/config"
	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/scheduler"
)

type healthCheck struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// health reports whether the database and root folders are reachable.
// Returns 503 when any check fails so orchestrators can act on it.
func (s *Server) health(c echo.Context) error {
	ctx := c.Request().Context()
	checks := []healthCheck{}
	healthy := true

	if s.deps.DB != nil {
		check := healthCheck{Name: "database", OK: true}
		if err := s.deps.DB.PingContext(ctx); err != nil {
			check.OK = false
			check.Error = err.Error()
			healthy = false
		}
		checks = append(checks, check)
	}

	if s.deps.RootFolders != nil {
		check := healthCheck{Name: "rootFolders", OK: true}
		folders, err := s.deps.RootFolders.List(ctx)
		if err != nil {
			check.OK = false
			check.Error = err.Error()
			healthy = false
		} else {
			for _, folder := range folders {
				if !folder.Accessible {
					check.OK = false
					check.Error = "root folder not accessible: " + folder.Path
					healthy = false
					break
				}
			}
		}
		checks = append(checks, check)
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	return c.JSON(status, map[string]interface{}{
		"status": state,
		"checks": checks,
	})
}

func (s *Server) systemStatus(c echo.Context) error {
	resp := map[string]interface{}{
		"version":   config.Version,
		"startTime": s.startedAt.Format(time.RFC3339),
		"uptimeSec": int64(time.Since(s.startedAt).Seconds()),
		"port":      s.cfg.Server.Port,
	}
	if s.deps.Queue != nil {
		items, err := s.deps.Queue.ListActive(c.Request().Context())
		if err == nil {
			resp["activeDownloads"] = len(items)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) listTasks(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return c.JSON(http.StatusOK, []scheduler.TaskInfo{})
	}
	return c.JSON(http.StatusOK, s.deps.Scheduler.ListTasks())
}

func (s *Server) runTask(c echo.Context) error {
	if s.deps.Scheduler == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no scheduler")
	}
	if err := s.deps.Scheduler.RunNow(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) listQueue(c echo.Context) error {
	if s.deps.Queue == nil {
		return c.JSON(http.StatusOK, []*downloader.QueueItem{})
	}
	items, err := s.deps.Queue.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) rssSyncStatus(c echo.Context) error {
	if s.deps.RssSync == nil {
		return c.JSON(http.StatusOK, map[string]bool{"running": false})
	}
	return c.JSON(http.StatusOK, s.deps.RssSync.LastStatus())
}

func (s *Server) searchStatus(c echo.Context) error {
	if s.deps.Search == nil {
		return c.NoContent(http.StatusNoContent)
	}
	status := s.deps.Search.ActiveStatus()
	if status == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, status)
}
