package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JustJay7/docket-merger/internal/cache"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/merger"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Engine is the part of the merger the HTTP surface drives.
type Engine interface {
	MergeDocket(ctx context.Context, upload *report.DocketUpload) (*merger.DocketResult, error)
	MergeAttachmentPage(ctx context.Context, upload *report.AttachmentPageUpload) (*merger.AttachmentResult, error)
	ProcessCaseQueryReport(ctx context.Context, upload *report.CaseQueryUpload) (*database.Docket, error)
}

// Handlers holds all HTTP handlers
type Handlers struct {
	db     *gorm.DB
	engine Engine
	stats  func() cache.CacheStats
	logger *logger.Logger
}

// NewHandlers creates a new handlers instance. stats may be nil.
func NewHandlers(db *gorm.DB, engine Engine, stats func() cache.CacheStats, logger *logger.Logger) *Handlers {
	return &Handlers{
		db:     db,
		engine: engine,
		stats:  stats,
		logger: logger,
	}
}

// MergeDocket accepts a parsed docket report.
func (h *Handlers) MergeDocket(c *gin.Context) {
	var upload report.DocketUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.engine.MergeDocket(c.Request.Context(), &upload)
	if err != nil {
		h.fail(c, "Docket merge failed", err)
		return
	}

	ids := make([]uint, 0, len(result.DocumentsCreated))
	for _, doc := range result.DocumentsCreated {
		ids = append(ids, doc.ID)
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":           true,
		"docket_id":         result.Docket.ID,
		"created":           result.Created,
		"documents_created": ids,
		"content_updated":   result.ContentUpdated,
		"entries_touched":   result.EntriesTouched,
	})
}

// MergeAttachmentPage accepts a parsed attachment page.
func (h *Handlers) MergeAttachmentPage(c *gin.Context) {
	var upload report.AttachmentPageUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	result, err := h.engine.MergeAttachmentPage(c.Request.Context(), &upload)
	if err != nil {
		h.fail(c, "Attachment page merge failed", err)
		return
	}

	ids := make([]uint, 0, len(result.Documents))
	for _, doc := range result.Documents {
		ids = append(ids, doc.ID)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"docket_entry_id":   result.Entry.ID,
		"document_ids":      ids,
		"documents_created": len(result.Created),
	})
}

// ProcessCaseQuery accepts a parsed case query page.
func (h *Handlers) ProcessCaseQuery(c *gin.Context) {
	var upload report.CaseQueryUpload
	if err := c.ShouldBindJSON(&upload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid request body: " + err.Error(),
		})
		return
	}

	d, err := h.engine.ProcessCaseQueryReport(c.Request.Context(), &upload)
	if err != nil {
		h.fail(c, "Case query merge failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"docket_id": d.ID,
	})
}

// GetDocket returns a stored docket with its entries, documents and parties.
func (h *Handlers) GetDocket(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid docket id",
		})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var d database.Docket
	err = db.Preload("OriginatingCourtInformation").
		Preload("DocketEntries", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("recap_sequence_number, id")
		}).
		Preload("DocketEntries.Documents", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("attachment_number, id")
		}).
		First(&d, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Docket not found",
		})
		return
	}
	if err != nil {
		h.fail(c, "Docket lookup failed", err)
		return
	}

	var parties []database.Party
	err = db.Preload("PartyTypes", "docket_id = ?", d.ID).
		Where("id IN (?)", db.Model(&database.PartyType{}).Select("party_id").Where("docket_id = ?", d.ID)).
		Order("id").
		Find(&parties).Error
	if err != nil {
		h.fail(c, "Party lookup failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"docket":  d,
		"parties": parties,
	})
}

// HealthCheck returns the health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	dbHealthy := false
	if sqlDB, err := h.db.DB(); err == nil {
		dbHealthy = sqlDB.PingContext(c.Request.Context()) == nil
	}

	body := gin.H{
		"status":   "healthy",
		"database": dbHealthy,
		"time":     time.Now().Unix(),
	}
	if h.stats != nil {
		body["cache"] = h.stats()
	}
	if !dbHealthy {
		body["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "path", c.FullPath(), "error", err)
	} else {
		h.logger.Info(msg, "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, merger.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, merger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, merger.ErrAmbiguousMatch), errors.Is(err, merger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, merger.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
