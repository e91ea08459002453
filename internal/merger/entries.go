package merger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
	"gorm.io/gorm"
)

// errStopMerge rolls back the current entry when DoNotUpdateExisting hits a
// stored entry.
var errStopMerge = errors.New("existing entry reached")

// EntryOptions tunes AddDocketEntries.
type EntryOptions struct {
	Tags []database.Tag
	// DoNotUpdateExisting stops at the first entry that is already stored.
	// Docket history reports use it since they only add entries.
	DoNotUpdateExisting bool
}

// EntriesResult lists what AddDocketEntries touched.
type EntriesResult struct {
	Entries          []database.DocketEntry
	DocumentsUpdated []database.Document
	DocumentsCreated []database.Document
	// ContentUpdated is true when at least one entry was new.
	ContentUpdated bool
}

type entryOutcome struct {
	entry      *database.DocketEntry
	created    bool
	day        time.Time
	doc        *database.Document
	docCreated bool
}

// AddDocketEntries merges entries into d. Each entry is reconciled in its own
// transaction holding the docket lease; attachments nested in an entry are
// merged right after it. Entries without a filed date are ignored.
func (m *Merger) AddDocketEntries(ctx context.Context, d *database.Docket, entries []report.DocketEntry, opts EntryOptions) (*EntriesResult, error) {
	res := &EntriesResult{}
	dated := make([]report.DocketEntry, 0, len(entries))
	for _, e := range entries {
		if e.DateFiled != nil && !e.DateFiled.IsZero() {
			dated = append(dated, e)
		}
	}
	dated = AssignSequenceNumbers(dated, m.localDateFunc(d.CourtID))
	appellate := m.courts.IsAppellate(d.CourtID)

	var lastFiling *time.Time
	for _, e := range dated {
		var out *entryOutcome
		err := database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
			var err error
			out, err = m.mergeEntry(tx, d, e, appellate, opts)
			return err
		})
		if errors.Is(err, errStopMerge) {
			return res, nil
		}
		if errors.Is(err, ErrValidation) {
			m.logger.Warn("Skipping docket entry", "docket_id", d.ID, "document_number", e.DocumentNumber, "error", err)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("docket %d entry %q: %w", d.ID, e.DocumentNumber, err)
		}
		if out == nil {
			continue
		}

		res.Entries = append(res.Entries, *out.entry)
		if out.created {
			res.ContentUpdated = true
			metrics.RowsCreated("docket_entries", 1)
			if lastFiling == nil || out.day.After(*lastFiling) {
				lastFiling = ptr(out.day)
			}
		}
		if out.doc != nil {
			if out.docCreated {
				res.DocumentsCreated = append(res.DocumentsCreated, *out.doc)
				metrics.RowsCreated("documents", 1)
			} else {
				res.DocumentsUpdated = append(res.DocumentsUpdated, *out.doc)
			}
		}

		if len(e.Attachments) > 0 && out.doc != nil && out.doc.PacerDocID != "" {
			number := out.doc.DocumentNumber
			_, err := m.mergeAttachments(ctx, attachmentRequest{
				courtID:        d.CourtID,
				pacerCaseID:    deref(d.PacerCaseID),
				pacerDocID:     out.doc.PacerDocID,
				documentNumber: &number,
				attachments:    e.Attachments,
			})
			if err != nil {
				return res, fmt.Errorf("docket %d entry %q attachments: %w", d.ID, e.DocumentNumber, err)
			}
		}
	}

	if err := m.bumpLastFiling(ctx, d, lastFiling); err != nil {
		return res, err
	}
	return res, nil
}

// bumpLastFiling moves the docket's last filing date forward to latest.
func (m *Merger) bumpLastFiling(ctx context.Context, d *database.Docket, latest *time.Time) error {
	if latest == nil || (d.DateLastFiling != nil && !latest.After(*d.DateLastFiling)) {
		return nil
	}
	err := m.db.WithContext(ctx).Model(&database.Docket{}).
		Where("id = ?", d.ID).
		Update("date_last_filing", *latest).Error
	if err != nil {
		return classify(err)
	}
	d.DateLastFiling = latest
	return nil
}

func (m *Merger) mergeEntry(tx *gorm.DB, d *database.Docket, e report.DocketEntry, appellate bool, opts EntryOptions) (*entryOutcome, error) {
	if err := database.AcquireDocketLease(tx, d.ID); err != nil {
		return nil, classify(err)
	}

	de, created, err := m.getOrMakeEntry(tx, d, &e)
	if err != nil {
		return nil, err
	}
	out := &entryOutcome{entry: de, created: created}

	day := m.courts.LocalDate(d.CourtID, e.DateFiled.Time, e.DateFiled.HasClock)
	out.day = day
	if e.DateFiled.HasClock {
		clock := e.DateFiled.Time.In(m.courts.Location(d.CourtID)).Format("15:04:05")
		de.TimeFiled = &clock
	} else if de.DateFiled == nil || !de.DateFiled.Equal(day) {
		de.TimeFiled = nil
	}
	de.DateFiled = &day
	de.Description = firstNonEmpty(e.Description, de.Description)
	de.PacerSequenceNumber = firstNonNil(e.PacerSeqNo, de.PacerSequenceNumber)
	de.RecapSequenceNumber = e.RecapSequenceNumber

	if opts.DoNotUpdateExisting && !created {
		return nil, errStopMerge
	}
	if err := tx.Save(de).Error; err != nil {
		return nil, classify(err)
	}
	if err := tagObjects(tx, opts.Tags, tagObjectEntry, de.ID); err != nil {
		return nil, err
	}

	doc, docCreated, err := m.mergeEntryDocument(tx, de, created, &e, appellate)
	if errors.Is(err, errSkipDocument) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tagObjects(tx, opts.Tags, tagObjectDocument, doc.ID); err != nil {
		return nil, err
	}
	out.doc, out.docCreated = doc, docCreated
	return out, nil
}

// getOrMakeEntry finds the stored entry e refers to, creating it if there is
// none. Numbered entries match on number and sequence number; unnumbered
// ones on date and description.
func (m *Merger) getOrMakeEntry(tx *gorm.DB, d *database.Docket, e *report.DocketEntry) (*database.DocketEntry, bool, error) {
	if n := normalize.EntryNumber(e.DocumentNumber); n != nil {
		return m.getOrMakeNumberedEntry(tx, d, *n, e.PacerSeqNo)
	}
	e.Description = normalize.LongDescription(e.Description)
	return m.getOrMakeUnnumberedEntry(tx, d, e)
}

func (m *Merger) getOrMakeNumberedEntry(tx *gorm.DB, d *database.Docket, number int64, seq *int) (*database.DocketEntry, bool, error) {
	byNumber := func() *gorm.DB {
		return tx.Model(&database.DocketEntry{}).Where("docket_id = ? AND entry_number = ?", d.ID, number)
	}
	exact := func() *gorm.DB {
		q := byNumber()
		if seq != nil {
			q = q.Where("pacer_sequence_number = ?", *seq)
		}
		return q
	}
	withoutSeq := func() *gorm.DB { return byNumber().Where("pacer_sequence_number IS NULL") }

	de, err := getOne[database.DocketEntry](exact())
	switch {
	case err == nil:
		return de, false, nil
	case errors.Is(err, ErrNotFound):
		if seq != nil {
			// Rows stored before sequence numbers were known get adopted.
			de, err := latest[database.DocketEntry](withoutSeq())
			if err == nil {
				if err := deleteEntries(tx, withoutSeq().Where("id <> ?", de.ID)); err != nil {
					return nil, false, err
				}
				return de, false, nil
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, false, err
			}
		}
		de = &database.DocketEntry{DocketID: d.ID, EntryNumber: ptr(number), PacerSequenceNumber: seq}
		if err := tx.Create(de).Error; err != nil {
			return nil, false, classify(err)
		}
		return de, true, nil
	case errors.Is(err, ErrAmbiguousMatch):
		if seq == nil {
			return nil, false, fmt.Errorf("%w: several entries numbered %d on docket %d", ErrValidation, number, d.ID)
		}
		m.logger.Warn("Duplicate docket entries found, keeping latest", "docket_id", d.ID, "entry_number", number)
		de, err := latest[database.DocketEntry](exact())
		if err != nil {
			return nil, false, err
		}
		if err := deleteEntries(tx, exact().Where("id <> ?", de.ID)); err != nil {
			return nil, false, err
		}
		if err := deleteEntries(tx, withoutSeq()); err != nil {
			return nil, false, err
		}
		return de, false, nil
	default:
		return nil, false, err
	}
}

func (m *Merger) getOrMakeUnnumberedEntry(tx *gorm.DB, d *database.Docket, e *report.DocketEntry) (*database.DocketEntry, bool, error) {
	day := m.courts.LocalDate(d.CourtID, e.DateFiled.Time, e.DateFiled.HasClock)
	sameDay := func() *gorm.DB {
		q := tx.Model(&database.DocketEntry{}).
			Where("docket_id = ? AND date_filed = ? AND entry_number IS NULL", d.ID, day)
		switch {
		case e.Description != "" && e.ShortDescription != "":
			q = q.Where("description = ? OR id IN (?)", e.Description, shortDescriptionEntries(tx, e.ShortDescription))
		case e.Description != "":
			q = q.Where("description = ?", e.Description)
		case e.ShortDescription != "":
			q = q.Where("id IN (?)", shortDescriptionEntries(tx, e.ShortDescription))
		}
		return q
	}

	var found []database.DocketEntry
	if err := sameDay().Order(oldestFirst).Limit(2).Find(&found).Error; err != nil {
		return nil, false, classify(err)
	}
	switch len(found) {
	case 0:
		return &database.DocketEntry{DocketID: d.ID}, true, nil
	case 1:
		return &found[0], false, nil
	}

	matching := func() *gorm.DB {
		return sameDay().Where("description = ? OR description = ?", e.Description, "")
	}
	scope := matching
	winner, err := earliest[database.DocketEntry](matching())
	if errors.Is(err, ErrNotFound) {
		scope = sameDay
		winner, err = earliest[database.DocketEntry](sameDay())
	}
	if err != nil {
		return nil, false, err
	}
	m.logger.Info("Merging duplicate unnumbered entries", "docket_id", d.ID, "kept", winner.ID)
	if err := deleteEntries(tx, scope().Where("id <> ?", winner.ID)); err != nil {
		return nil, false, err
	}
	return winner, false, nil
}

func shortDescriptionEntries(tx *gorm.DB, short string) *gorm.DB {
	return tx.Model(&database.Document{}).Select("docket_entry_id").Where("description = ?", short)
}

// deleteEntries removes the entries scope matches along with their
// documents.
func deleteEntries(tx *gorm.DB, scope *gorm.DB) error {
	var ids []uint
	if err := scope.Pluck("id", &ids).Error; err != nil {
		return classify(err)
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("docket_entry_id IN ?", ids).Delete(&database.Document{}).Error; err != nil {
		return classify(err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&database.DocketEntry{}).Error; err != nil {
		return classify(err)
	}
	return nil
}

// errSkipDocument leaves the entry saved but its document untouched.
var errSkipDocument = errors.New("document skipped")

// mergeEntryDocument finds or creates the document an entry row points at
// and applies the entry's document fields to it.
func (m *Merger) mergeEntryDocument(tx *gorm.DB, de *database.DocketEntry, entryCreated bool, e *report.DocketEntry, appellate bool) (*database.Document, bool, error) {
	number := strings.TrimSpace(e.DocumentNumber)
	params := docParams{entryID: de.ID, kind: ptr(database.DocumentMain)}
	if e.DocumentNumber == "" && e.ShortDescription != "" {
		params.description = ptr(e.ShortDescription)
	}
	if e.AttachmentNumber != nil && *e.AttachmentNumber != 0 {
		params.kind = ptr(database.DocumentAttachment)
		params.attachmentNumber = e.AttachmentNumber
	}

	if !entryCreated && appellate {
		var attachments int64
		err := tx.Model(&database.Document{}).
			Where("docket_entry_id = ? AND document_type = ?", de.ID, database.DocumentAttachment).
			Count(&attachments).Error
		if err != nil {
			return nil, false, classify(err)
		}
		// Appellate main documents are promoted to attachments once an
		// attachment page is merged, so match on the document id instead.
		if attachments > 0 {
			params.kind = ptr(database.DocumentAttachment)
			params.pacerDocID = ptr(e.PacerDocID)
		}
	}

	lookup := params
	if !entryCreated {
		if !appellate {
			lookup.pacerDocID = ptr(e.PacerDocID)
		}
		lookup.kind = nil
	}

	created := false
	doc, err := getOne[database.Document](lookup.scope(tx))
	switch {
	case errors.Is(err, ErrNotFound):
		doc = nil
		if !entryCreated && !appellate {
			doc, err = getOne[database.Document](params.scope(tx))
			if errors.Is(err, ErrAmbiguousMatch) {
				doc, err = keepLatestDocument(tx, func() *gorm.DB { return params.scope(tx) })
			}
			if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, false, err
			}
		}
		if doc == nil {
			doc = &database.Document{
				DocketEntryID:    de.ID,
				DocumentType:     *params.kind,
				DocumentNumber:   number,
				AttachmentNumber: params.attachmentNumber,
				PacerDocID:       e.PacerDocID,
			}
			if params.description != nil {
				doc.Description = *params.description
			}
			created = true
		}
	case errors.Is(err, ErrAmbiguousMatch):
		if *params.kind == database.DocumentAttachment {
			m.logger.Warn("Several attachments match docket entry, skipping", "entry_id", de.ID, "pacer_doc_id", e.PacerDocID)
			return nil, false, errSkipDocument
		}
		doc, err = keepLatestDocument(tx, func() *gorm.DB { return params.scope(tx) })
		if err != nil {
			return nil, false, err
		}
	case err != nil:
		return nil, false, err
	}

	if e.PacerDocID != "" {
		doc.PacerDocID = e.PacerDocID
	}
	if e.ShortDescription != "" {
		if doc.DocumentType == database.DocumentMain {
			doc.Description = e.ShortDescription
		} else {
			skip, err := backfillMainDescription(tx, de.ID, e.ShortDescription)
			if err != nil {
				return nil, false, err
			}
			if skip {
				return nil, false, errSkipDocument
			}
		}
	}
	doc.DocumentNumber = number
	if err := saveDocument(tx, doc); err != nil {
		if errors.Is(err, ErrValidation) {
			m.logger.Warn("Document failed integrity checks, skipping", "entry_id", de.ID, "error", err)
			return nil, false, errSkipDocument
		}
		return nil, false, err
	}
	return doc, created, nil
}

// backfillMainDescription copies an attachment's short description onto the
// entry's main document when that has none. It reports skip when the
// entry's first main document already looks like an attachment.
func backfillMainDescription(tx *gorm.DB, entryID uint, short string) (skip bool, err error) {
	main, err := firstBy[database.Document](
		tx.Model(&database.Document{}).Where("docket_entry_id = ? AND document_type = ?", entryID, database.DocumentMain),
		"id",
	)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if main.AttachmentNumber != nil {
		return true, nil
	}
	if main.Description != "" {
		return false, nil
	}
	return false, classify(tx.Model(main).Update("description", short).Error)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
