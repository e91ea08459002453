package merger

import (
	"context"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
)

// ProcessOrphanDocuments hands failed PDF uploads for newly created documents
// back to the PDF processor. Uploads usually fail because their document row
// did not exist yet. Only recent failures are retried: those updated after
// the docket's filed date minus the lookback window, or after now minus the
// fallback window when the filed date is unknown. Per-upload failures are
// logged and skipped. It returns how many uploads were reprocessed.
func (m *Merger) ProcessOrphanDocuments(ctx context.Context, created []database.Document, courtID string, dateFiled *time.Time) int {
	ids := make([]string, 0, len(created))
	for _, d := range created {
		if d.PacerDocID != "" {
			ids = append(ids, d.PacerDocID)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	cutoff := m.now().Add(-m.orphanFallback)
	if dateFiled != nil {
		cutoff = dateFiled.Add(-m.orphanLookback)
	}

	var items []database.ProcessingQueue
	err := m.db.WithContext(ctx).
		Where("pacer_doc_id IN ? AND court_id = ?", ids, courtID).
		Where("status = ? AND upload_type = ? AND debug = ?", database.ProcessingFailed, database.UploadPDF, false).
		Where("updated_at > ?", cutoff).
		Order("id").
		Find(&items).Error
	if err != nil {
		m.logger.Warn("Failed to load orphan uploads", "court", courtID, "error", err)
		return 0
	}

	done := 0
	for i := range items {
		err := m.pdfs.ProcessUpload(ctx, &items[i])
		metrics.OrphanReprocessed(err)
		if err != nil {
			m.logger.Debug("Orphan upload reprocessing failed", "upload_id", items[i].ID, "error", err)
			continue
		}
		done++
	}
	return done
}
