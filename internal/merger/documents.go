package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
	"github.com/JustJay7/docket-merger/internal/report"
	"gorm.io/gorm"
)

// docParams narrows a document lookup. Nil fields are not constrained.
type docParams struct {
	entryID          uint
	kind             *database.DocumentKind
	attachmentNumber *int
	documentNumber   *string
	pacerDocID       *string
	description      *string
	acmsGUID         *string
}

func (p docParams) scope(tx *gorm.DB) *gorm.DB {
	q := tx.Model(&database.Document{}).Where("docket_entry_id = ?", p.entryID)
	if p.kind != nil {
		q = q.Where("document_type = ?", *p.kind)
	}
	if p.attachmentNumber != nil {
		q = q.Where("attachment_number = ?", *p.attachmentNumber)
	}
	if p.documentNumber != nil {
		q = q.Where("document_number = ?", *p.documentNumber)
	}
	if p.pacerDocID != nil {
		q = q.Where("pacer_doc_id = ?", *p.pacerDocID)
	}
	if p.description != nil {
		q = q.Where("description = ?", *p.description)
	}
	if p.acmsGUID != nil {
		q = q.Where("acms_document_guid = ?", *p.acmsGUID)
	}
	return q
}

// keepLatestDocument collapses the documents matched by scope to one: the
// newest available copy with a local file if there is one, otherwise the
// newest overall. The rest are deleted.
func keepLatestDocument(tx *gorm.DB, scope func() *gorm.DB) (*database.Document, error) {
	keep, err := latest[database.Document](scope().Where("is_available = ? AND filepath_local <> ?", true, ""))
	if errors.Is(err, ErrNotFound) {
		keep, err = latest[database.Document](scope())
	}
	if err != nil {
		return nil, err
	}
	res := scope().Where("id <> ?", keep.ID).Delete(&database.Document{})
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	metrics.DuplicatesRemoved(int(res.RowsAffected))
	return keep, nil
}

// saveDocument inserts or updates doc inside a savepoint. A unique index
// violation means a concurrent writer got there first and comes back as
// ErrValidation so the caller can skip the item.
func saveDocument(tx *gorm.DB, doc *database.Document) error {
	err := tx.Transaction(func(sp *gorm.DB) error {
		if doc.ID == 0 {
			return sp.Create(doc).Error
		}
		return sp.Save(doc).Error
	})
	if err != nil && database.IsDuplicateKey(err) {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return classify(err)
}

// CleanDuplicateAttachmentEntries removes duplicate documents sharing an
// external document id within one entry, returning how many were deleted.
func (m *Merger) CleanDuplicateAttachmentEntries(ctx context.Context, entryID uint, attachments []report.Attachment) (int, error) {
	var removed int
	err := database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
		var err error
		removed, err = cleanDuplicateAttachmentEntries(tx, entryID, attachments)
		return err
	})
	return removed, err
}

// cleanDuplicateAttachmentEntries first drops duplicates whose attachment
// number disagrees with what the parsed attachment list says that id is,
// then keeps only the newest (available first) of any that remain.
func cleanDuplicateAttachmentEntries(tx *gorm.DB, entryID uint, attachments []report.Attachment) (int, error) {
	dupeIDs := func() ([]string, error) {
		var ids []string
		err := tx.Model(&database.Document{}).
			Where("docket_entry_id = ? AND pacer_doc_id <> ?", entryID, "").
			Group("pacer_doc_id").
			Having("COUNT(id) > 1").
			Pluck("pacer_doc_id", &ids).Error
		return ids, classify(err)
	}

	ids, err := dupeIDs()
	if err != nil || len(ids) == 0 {
		return 0, err
	}

	var dupes []database.Document
	if err := tx.Where("docket_entry_id = ? AND pacer_doc_id IN ?", entryID, ids).
		Order(oldestFirst).Find(&dupes).Error; err != nil {
		return 0, classify(err)
	}
	removed := 0
	for _, dupe := range dupes {
		if !conflictsWithParsed(dupe, attachments) {
			continue
		}
		if err := tx.Delete(&database.Document{}, dupe.ID).Error; err != nil {
			return removed, classify(err)
		}
		removed++
	}
	metrics.DuplicatesRemoved(removed)

	ids, err = dupeIDs()
	if err != nil {
		return removed, err
	}
	for _, id := range ids {
		scope := func() *gorm.DB {
			return tx.Model(&database.Document{}).Where("docket_entry_id = ? AND pacer_doc_id = ?", entryID, id)
		}
		var before int64
		if err := scope().Count(&before).Error; err != nil {
			return removed, classify(err)
		}
		if _, err := keepLatestDocument(tx, scope); err != nil {
			return removed, err
		}
		removed += int(before) - 1
	}
	return removed, nil
}

// conflictsWithParsed reports whether the parsed attachments list doc's id
// but never at doc's attachment number. Index 0 stands for the main
// document.
func conflictsWithParsed(doc database.Document, attachments []report.Attachment) bool {
	listed := false
	for _, a := range attachments {
		if a.PacerDocID != doc.PacerDocID || a.AttachmentNumber == nil {
			continue
		}
		listed = true
		n := *a.AttachmentNumber
		if doc.AttachmentNumber != nil && *doc.AttachmentNumber == n {
			return false
		}
		if doc.AttachmentNumber == nil && n == 0 {
			return false
		}
	}
	return listed
}
