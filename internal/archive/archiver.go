package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Object types recorded on archived files.
const (
	ObjectDocket      = "docket"
	ObjectDocketEntry = "docket_entry"
)

// Archiver stores a raw page and records it against the row it produced.
type Archiver struct {
	db     *gorm.DB
	store  Store
	logger *logger.Logger
}

func NewArchiver(db *gorm.DB, store Store, log *logger.Logger) *Archiver {
	return &Archiver{db: db, store: store, logger: log}
}

// Save writes content under a unique name derived from filename and creates
// the pacer_html_files row pointing at it.
func (a *Archiver) Save(ctx context.Context, objectType string, objectID uint, uploadType database.UploadType, filename string, content []byte) (*database.PacerHTMLFile, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}

	name := uuid.NewString() + "-" + filename
	stored, err := a.store.Put(ctx, name, content, contentType(filename))
	if err != nil {
		return nil, fmt.Errorf("archive %s: %w", filename, err)
	}

	rec := &database.PacerHTMLFile{
		ObjectType: objectType,
		ObjectID:   objectID,
		UploadType: uploadType,
		Filepath:   stored,
	}
	if err := a.db.WithContext(ctx).Create(rec).Error; err != nil {
		if delErr := a.store.Delete(ctx, stored); delErr != nil {
			a.logger.Warn("Failed to remove orphaned archive blob", "path", stored, "error", delErr)
		}
		return nil, fmt.Errorf("record archived file: %w", err)
	}

	a.logger.Debug("Archived raw page",
		"objectType", objectType,
		"objectID", objectID,
		"uploadType", uploadType,
		"path", stored)
	return rec, nil
}

// Files lists the archived pages recorded for one row, oldest first.
func (a *Archiver) Files(ctx context.Context, objectType string, objectID uint) ([]database.PacerHTMLFile, error) {
	var files []database.PacerHTMLFile
	err := a.db.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", objectType, objectID).
		Order("created_at, id").
		Find(&files).Error
	return files, err
}

func contentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
