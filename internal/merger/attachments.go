package merger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/docket-merger/internal/archive"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
	"gorm.io/gorm"
)

type attachmentRequest struct {
	courtID     string
	pacerCaseID string
	// pacerDocID is the entry's main document.
	pacerDocID     string
	documentNumber *string
	text           *string
	attachments    []report.Attachment
	isACMS         bool
}

// AttachmentResult describes one merged attachment page.
type AttachmentResult struct {
	Entry     database.DocketEntry    `json:"entry"`
	Documents []database.Document     `json:"documents"`
	Created   []database.Document     `json:"created"`
	File      *database.PacerHTMLFile `json:"file,omitempty"`
}

// MergeAttachmentPage merges a parsed attachment page into the entry whose
// main document it describes.
func (m *Merger) MergeAttachmentPage(ctx context.Context, upload *report.AttachmentPageUpload) (*AttachmentResult, error) {
	start := time.Now()
	err := upload.Validate()
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrValidation, err)
	} else {
		err = m.checkCourt(upload.CourtID)
	}
	if err != nil {
		metrics.ObserveMerge(metrics.KindAttachmentPage, start, err)
		return nil, err
	}
	res, err := m.mergeAttachments(ctx, attachmentRequest{
		courtID:        upload.CourtID,
		pacerCaseID:    upload.PacerCaseID,
		pacerDocID:     upload.PacerDocID,
		documentNumber: upload.DocumentNumber,
		text:           upload.Text,
		attachments:    upload.Attachments,
		isACMS:         upload.IsACMS,
	})
	metrics.ObserveMerge(metrics.KindAttachmentPage, start, err)
	return res, err
}

func (m *Merger) mergeAttachments(ctx context.Context, req attachmentRequest) (*AttachmentResult, error) {
	res := &AttachmentResult{}
	var d database.Docket
	err := database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
		main, err := m.resolveMainDocument(tx, req, res)
		if err != nil {
			return err
		}
		if err := tx.First(&res.Entry, main.DocketEntryID).Error; err != nil {
			return classify(err)
		}
		if err := tx.First(&d, res.Entry.DocketID).Error; err != nil {
			return classify(err)
		}
		if err := database.AcquireDocketLease(tx, d.ID); err != nil {
			return classify(err)
		}
		if err := m.mergeAttachmentRows(tx, req, main, &res.Entry, res); err != nil {
			return err
		}
		if !req.isACMS {
			if _, err := cleanDuplicateAttachmentEntries(tx, res.Entry.ID, req.attachments); err != nil {
				return err
			}
		}
		return classify(tx.Model(&d).Update("ia_needs_upload", true).Error)
	})
	if err != nil {
		return nil, err
	}

	if req.text != nil && m.archive != nil {
		name, content := "attachment_page.html", []byte(*req.text)
		if req.isACMS {
			name = "attachment_page.json"
		}
		file, err := m.archive.Save(ctx, archive.ObjectDocketEntry, res.Entry.ID, database.UploadAttachmentPage, name, content)
		if err != nil {
			m.logger.Warn("Failed to archive attachment page", "entry_id", res.Entry.ID, "error", err)
		}
		res.File = file
	}

	m.ProcessOrphanDocuments(ctx, res.Created, req.courtID, d.DateFiled)
	return res, nil
}

// documentsByPacerID scopes documents with pacerDocID on dockets in the
// request's court (and case, when known).
func documentsByPacerID(tx *gorm.DB, req attachmentRequest, pacerDocID string) *gorm.DB {
	q := tx.Model(&database.Document{}).
		Joins("JOIN docket_entries ON docket_entries.id = documents.docket_entry_id").
		Joins("JOIN dockets ON dockets.id = docket_entries.docket_id").
		Where("documents.pacer_doc_id = ? AND dockets.court_id = ?", pacerDocID, req.courtID)
	if req.pacerCaseID != "" {
		q = q.Where("dockets.pacer_case_id = ?", req.pacerCaseID)
	}
	return q
}

// findByPacerID returns the single document carrying pacerDocID. Several
// matches are collapsed when the case id pins the docket, and are an error
// otherwise.
func findByPacerID(tx *gorm.DB, req attachmentRequest, pacerDocID string) (*database.Document, error) {
	var ids []uint
	if err := documentsByPacerID(tx, req, pacerDocID).Order("documents.id").Pluck("documents.id", &ids).Error; err != nil {
		return nil, classify(err)
	}
	switch {
	case len(ids) == 0:
		return nil, ErrNotFound
	case len(ids) == 1 || req.isACMS:
		var doc database.Document
		if err := tx.First(&doc, ids[0]).Error; err != nil {
			return nil, classify(err)
		}
		return &doc, nil
	case req.pacerCaseID == "":
		return nil, fmt.Errorf("%w: %d documents with id %s in %s", ErrAmbiguousMatch, len(ids), pacerDocID, req.courtID)
	}
	return keepLatestDocument(tx, func() *gorm.DB {
		return tx.Model(&database.Document{}).Where("id IN ?", ids)
	})
}

// resolveMainDocument finds the main document for req. Courts have been seen
// to reissue a main document under a new id; when the main id is unknown an
// attachment id from the page is tried instead, and the main document is
// recreated on the entry that turns up.
func (m *Merger) resolveMainDocument(tx *gorm.DB, req attachmentRequest, res *AttachmentResult) (*database.Document, error) {
	main, err := findByPacerID(tx, req, req.pacerDocID)
	if err == nil || !errors.Is(err, ErrNotFound) || req.isACMS {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: main document %s in %s", ErrNotFound, req.pacerDocID, req.courtID)
		}
		return main, err
	}

	var found *database.Document
	var description string
	for _, a := range req.attachments {
		if a.PacerDocID == "" {
			continue
		}
		doc, err := findByPacerID(tx, req, a.PacerDocID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if a.AttachmentNumber != nil && *a.AttachmentNumber != 0 {
			description = doc.Description
			doc.AttachmentNumber = a.AttachmentNumber
			doc.DocumentType = database.DocumentAttachment
			if err := saveDocument(tx, doc); err != nil {
				return nil, err
			}
		}
		found = doc
		break
	}
	if found == nil {
		return nil, fmt.Errorf("%w: main document %s in %s", ErrNotFound, req.pacerDocID, req.courtID)
	}

	m.logger.Info("Main document id changed, recreating main document",
		"entry_id", found.DocketEntryID, "pacer_doc_id", req.pacerDocID)
	main = &database.Document{
		DocketEntryID:  found.DocketEntryID,
		DocumentType:   database.DocumentMain,
		DocumentNumber: found.DocumentNumber,
		Description:    description,
		PacerDocID:     req.pacerDocID,
	}
	if err := saveDocument(tx, main); err != nil {
		return nil, err
	}
	res.Created = append(res.Created, *main)
	return main, nil
}

// mergeAttachmentRows applies each attachment row to its document.
func (m *Merger) mergeAttachmentRows(tx *gorm.DB, req attachmentRequest, main *database.Document, de *database.DocketEntry, res *AttachmentResult) error {
	number := main.DocumentNumber
	if req.documentNumber != nil {
		number = *req.documentNumber
	}
	appellate := m.courts.IsAppellate(req.courtID)
	longNumber := appellate && normalize.IsLongAppellateDocumentNumber(number)
	promoted := false

	for _, a := range req.attachments {
		if a.AttachmentNumber == nil || a.PacerDocID == "" {
			continue
		}
		index := *a.AttachmentNumber
		// A null page count marks a row PACER could not describe.
		if a.PageCount.Present && a.PageCount.Value == nil && index != 0 {
			continue
		}

		var doc *database.Document
		isNew := false
		if appellate && !promoted && a.PacerDocID == main.PacerDocID {
			// Appellate entries open with their main document, which the
			// attachment page lists as an attachment. The row moves in place.
			promoted = true
			doc = main
			doc.DocumentType = database.DocumentAttachment
			doc.AttachmentNumber = ptr(index)
			if a.ACMSDocumentGUID != "" {
				doc.ACMSDocumentGUID = a.ACMSDocumentGUID
			}
		} else {
			var err error
			doc, isNew, err = m.findAttachmentDocument(tx, de, number, longNumber, a)
			if err != nil {
				return err
			}
		}

		if a.Description != "" && doc.DocumentType == database.DocumentAttachment {
			doc.Description = a.Description
		}
		doc.PacerDocID = a.PacerDocID
		if longNumber {
			doc.DocumentNumber = req.pacerDocID
		}
		if doc.PageCount == nil && a.PageCount.Value != nil && *a.PageCount.Value != 0 {
			doc.PageCount = a.PageCount.Value
		}
		switch {
		case a.FileSizeBytes != nil:
			doc.FileSize = a.FileSizeBytes
		case doc.FileSize == nil && a.FileSizeStr != "":
			if size, err := normalize.SizeToBytes(a.FileSizeStr); err == nil {
				doc.FileSize = &size
			}
		}

		if err := saveDocument(tx, doc); err != nil {
			if errors.Is(err, ErrValidation) {
				m.logger.Warn("Attachment failed integrity checks, skipping",
					"entry_id", de.ID, "attachment_number", index, "error", err)
				continue
			}
			return err
		}
		res.Documents = append(res.Documents, *doc)
		if isNew {
			res.Created = append(res.Created, *doc)
			metrics.RowsCreated("documents", 1)
		}
	}
	return nil
}

// findAttachmentDocument looks up the document for one attachment row by
// slot, then by document id, and builds a new one if neither matches.
func (m *Merger) findAttachmentDocument(tx *gorm.DB, de *database.DocketEntry, number string, longNumber bool, a report.Attachment) (*database.Document, bool, error) {
	index := *a.AttachmentNumber
	slot := docParams{entryID: de.ID, documentNumber: ptr(number)}
	if index == 0 {
		slot.kind = ptr(database.DocumentMain)
	} else {
		slot.kind = ptr(database.DocumentAttachment)
		slot.attachmentNumber = ptr(index)
	}
	if a.ACMSDocumentGUID != "" {
		slot.acmsGUID = ptr(a.ACMSDocumentGUID)
	}

	doc, err := getOne[database.Document](slot.scope(tx))
	if errors.Is(err, ErrAmbiguousMatch) {
		doc, err = keepLatestDocument(tx, func() *gorm.DB { return slot.scope(tx) })
	}
	if err == nil {
		return doc, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	byID := docParams{entryID: de.ID, pacerDocID: ptr(a.PacerDocID), acmsGUID: slot.acmsGUID}
	if !longNumber {
		byID.documentNumber = ptr(number)
	}
	doc, err = getOne[database.Document](byID.scope(tx))
	if errors.Is(err, ErrAmbiguousMatch) {
		doc, err = keepLatestDocument(tx, func() *gorm.DB { return byID.scope(tx) })
	}
	isNew := false
	switch {
	case errors.Is(err, ErrNotFound):
		doc = &database.Document{
			DocketEntryID:    de.ID,
			DocumentNumber:   number,
			ACMSDocumentGUID: a.ACMSDocumentGUID,
		}
		isNew = true
	case err != nil:
		return nil, false, err
	}

	if index == 0 {
		desc, err := mainDescription(tx, de.ID)
		if err != nil {
			return nil, false, err
		}
		if desc != "" {
			doc.Description = desc
		}
		doc.DocumentType = database.DocumentMain
		doc.AttachmentNumber = nil
	} else {
		doc.DocumentType = database.DocumentAttachment
		doc.AttachmentNumber = ptr(index)
	}
	return doc, isNew, nil
}

// mainDescription is the description of the entry's main document, if it
// has one.
func mainDescription(tx *gorm.DB, entryID uint) (string, error) {
	main, err := getOne[database.Document](docParams{entryID: entryID, kind: ptr(database.DocumentMain)}.scope(tx))
	switch {
	case err == nil:
		return main.Description, nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAmbiguousMatch):
		return "", nil
	default:
		return "", err
	}
}
