package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docsync/docsync/handlers"
	"github.com/docsync/docsync/internal/collab"
	"github.com/docsync/docsync/internal/config"
	"github.com/docsync/docsync/internal/database"
	"github.com/docsync/docsync/internal/document"
	"github.com/docsync/docsync/internal/document/handler"
	"github.com/docsync/docsync/internal/document/service"
	"github.com/docsync/docsync/internal/presence"
	"github.com/docsync/docsync/internal/realtime"
	"github.com/docsync/docsync/internal/storage"
	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/metrics"
	"github.com/docsync/docsync/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var startTime = time.Now()

// readyProbeID is looked up to check the record store; it never exists.
const readyProbeID = "__docsync_ready_probe__"

// app is the assembled collaboration server.
type app struct {
	cfg        *config.Config
	router     *gin.Engine
	gateway    service.Service
	collab     *handlers.CollabHandler
	saver      *collab.Autosaver
	rdb        *redis.Client
	relay      *realtime.RedisRelay
	closeStore func(context.Context) error
	stopRelay  context.CancelFunc
}

func newApp(ctx context.Context, cfg *config.Config, reg *prometheus.Registry) (*app, error) {
	repo, closeStore, err := database.OpenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a := &app{
		cfg:        cfg,
		gateway:    service.New(repo, cfg.Store.Timeout),
		closeStore: closeStore,
		stopRelay:  func() {},
	}

	rooms := realtime.NewBroadcaster()
	if cfg.Redis.Addr() != "" {
		rdb, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warnf("redis unavailable, rooms are local to this instance: %v", err)
		} else {
			a.rdb = rdb
			relayCtx, cancel := context.WithCancel(context.Background())
			relay := realtime.NewRedisRelay(rdb, cfg.Redis.Channel, 0)
			if err := relay.Start(relayCtx, rooms.DeliverRemote); err != nil {
				cancel()
				logger.Warnf("cross-instance relay disabled: %v", err)
			} else {
				a.relay = relay
				a.stopRelay = cancel
				rooms.SetRelay(relay)
			}
		}
	}

	var archive handler.Archiver
	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			archive = st
		}
	}

	a.saver = collab.NewAutosaver(a.gateway, cfg.Collab.AutosaveMinInterval, cfg.Collab.SaveTimeout)
	coord := collab.NewCoordinator(a.gateway, presence.NewRegistry(cfg.Collab.Palette), rooms, a.saver)
	a.collab = handlers.NewCollabHandler(coord, cfg.WebSocket, cfg.Collab.SendBuffer, cfg.Server.AllowedOrigin)

	metrics.RegisterCollectors(reg)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigin), middleware.Metrics())
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", a.ready)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	handlers.RegisterSwagger(r)
	handler.New(a.gateway, archive).Register(r)
	a.collab.Register(r)
	a.router = r
	return a, nil
}

// ready returns 200 only when the record store (and Redis, when configured)
// answer.
func (a *app) ready(c *gin.Context) {
	deps := map[string]bool{}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	_, err := a.gateway.Get(ctx, readyProbeID)
	deps["storage"] = err == nil || errors.Is(err, document.ErrNotFound)

	if a.cfg.Redis.Addr() != "" {
		deps["redis"] = a.rdb != nil && a.rdb.Ping(ctx).Err() == nil
	}

	ready := true
	for _, ok := range deps {
		ready = ready && ok
	}
	body := gin.H{"deps": deps, "uptime": time.Since(startTime).String(), "connections": a.collab.Active()}
	if !ready {
		body["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}

// shutdown closes live sockets, flushes pending saves and releases clients.
func (a *app) shutdown(ctx context.Context) {
	a.collab.CloseAll()
	if err := a.saver.Close(ctx); err != nil {
		logger.Warnf("autosave flush incomplete: %v", err)
	}
	a.stopRelay()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.closeStore(ctx); err != nil {
		logger.Warnf("closing record store: %v", err)
	}
}
