package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/docsync/docsync/internal/document"
	"github.com/docsync/docsync/internal/document/service"
	"github.com/docsync/docsync/internal/storage"
	"github.com/docsync/docsync/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const exportURLTTL = 15 * time.Minute

// Archiver stores document snapshots outside the record store.
type Archiver interface {
	Archive(ctx context.Context, kind string, d *document.Document) (string, error)
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Handler serves the document catalog. archive may be nil.
type Handler struct {
	svc     service.Service
	archive Archiver
	newID   func() string
}

func New(svc service.Service, archive Archiver) *Handler {
	return &Handler{svc: svc, archive: archive, newID: func() string { return ulid.Make().String() }}
}

// RegisterDocumentRoutes registers the catalog without a snapshot archive.
func RegisterDocumentRoutes(r gin.IRouter, svc service.Service) {
	New(svc, nil).Register(r)
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api/documents")
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.getOrCreate)
	g.PATCH("/:id", h.save)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/export", h.export)
}

// respondError maps the gateway's error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, document.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": "document already exists"})
	case errors.Is(err, document.ErrStorageUnavailable):
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		logger.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (h *Handler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) create(c *gin.Context) {
	var req struct {
		DocumentID string `json:"documentId" binding:"omitempty,max=256"`
		Title      string `json:"title"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DocumentID == "" {
		req.DocumentID = h.newID()
	}
	d, err := h.svc.Create(c.Request.Context(), &document.Document{DocumentID: req.DocumentID, Title: req.Title, Content: req.Content})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) getOrCreate(c *gin.Context) {
	d, err := h.svc.GetOrCreate(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) save(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		Title   *string `json:"title"`
		Content string  `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	title := document.DefaultTitle
	if req.Title != nil {
		title = *req.Title
	} else if cur, err := h.svc.Get(ctx, id); err == nil {
		title = cur.Title
	}
	if err := h.svc.Upsert(ctx, id, req.Content, title); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documentId": id})
}

func (h *Handler) delete(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if h.archive != nil {
		if d, err := h.svc.Get(ctx, id); err == nil {
			if _, err := h.archive.Archive(ctx, storage.KindDeleted, d); err != nil {
				logger.Warnf("archive %s before delete: %v", id, err)
			}
		}
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) export(c *gin.Context) {
	if h.archive == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "snapshot archive not configured"})
		return
	}
	ctx := c.Request.Context()
	d, err := h.svc.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	key, err := h.archive.Archive(ctx, storage.KindExport, d)
	if err != nil {
		logger.Errorf("export %s: %v", d.DocumentID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "archive failed"})
		return
	}
	url, err := h.archive.PresignedURL(ctx, key, exportURLTTL)
	if err != nil {
		logger.Errorf("presign %s: %v", key, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "archive failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documentId": d.DocumentID, "key": key, "url": url})
}
