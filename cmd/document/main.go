// Command document serves only the document catalog REST API, without the
// realtime collaboration endpoint.
package main

import (
	"context"
	"os"

	"github.com/docsync/docsync/internal/config"
	"github.com/docsync/docsync/internal/database"
	"github.com/docsync/docsync/internal/document/handler"
	"github.com/docsync/docsync/internal/document/service"
	"github.com/docsync/docsync/internal/storage"
	"github.com/docsync/docsync/pkg/logger"
	"github.com/docsync/docsync/pkg/middleware"
	"github.com/gin-gonic/gin"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	port := os.Getenv("DOC_SERVICE_PORT")
	if port == "" {
		port = "5010"
	}

	ctx := context.Background()
	repo, closeStore, err := database.OpenStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("open record store: %v", err)
	}
	defer func() { _ = closeStore(ctx) }()

	var archive handler.Archiver
	if cfg.MinIO.Endpoint != "" {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("snapshot archive disabled: %v", err)
		} else {
			archive = st
		}
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORS(cfg.Server.AllowedOrigin))
	handler.New(service.New(repo, cfg.Store.Timeout), archive).Register(r)

	logger.Infof("document catalog listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}
