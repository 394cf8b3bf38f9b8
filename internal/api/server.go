// Package api exposes the management surface: health and status
// endpoints, the task registry, and the websocket stream.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/sportarr/sportarr/internal/api/middleware"
	"github.com/sportarr/sportarr/internal/config"
	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/indexer/search"
	"github.com/sportarr/sportarr/internal/library/rootfolder"
	"github.com/sportarr/sportarr/internal/rsssync"
	"github.com/sportarr/sportarr/internal/scheduler"
	"github.com/sportarr/sportarr/internal/websocket"
)

// Deps carries the services the API surface reads from. Any field may
// be nil; the corresponding endpoints then report empty data.
type Deps struct {
	DB          *sql.DB
	Hub         *websocket.Hub
	Scheduler   *scheduler.Scheduler
	Queue       *downloader.Queue
	RssSync     *rsssync.Service
	Search      *search.Service
	RootFolders *rootfolder.Service
}

// Server handles HTTP requests for the management API.
type Server struct {
	echo      *echo.Echo
	cfg       *config.Config
	deps      Deps
	logger    zerolog.Logger
	startedAt time.Time
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:      e,
		cfg:       cfg,
		deps:      deps,
		logger:    logger.With().Str("component", "api").Logger(),
		startedAt: time.Now().UTC(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(echomw.RequestID())
	s.echo.Use(middleware.SecurityHeaders())

	s.echo.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Api-Key"},
	}))

	s.echo.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	s.echo.Use(echomw.GzipWithConfig(echomw.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api/v1", middleware.APIKey(s.cfg.Server.APIKey))
	api.GET("/system/status", s.systemStatus)
	api.GET("/system/tasks", s.listTasks)
	api.POST("/system/tasks/:id/run", s.runTask)
	api.GET("/queue", s.listQueue)
	api.GET("/rsssync/status", s.rssSyncStatus)
	api.GET("/search/status", s.searchStatus)

	if s.deps.Hub != nil {
		s.echo.GET("/ws", func(c echo.Context) error {
			key := s.cfg.Server.APIKey
			if key != "" && c.QueryParam("apikey") != key {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
			}
			return s.deps.Hub.HandleWebSocket(c)
		})
	}
}

// Start begins serving on the configured address. Blocks until the
// server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info().Str("addr", addr).Msg("Starting API server")
	err := s.echo.Start(addr)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
