package merger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JustJay7/docket-merger/internal/archive"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
)

// DocketResult summarizes one docket merge.
type DocketResult struct {
	Docket           database.Docket         `json:"docket"`
	Created          bool                    `json:"created"`
	ContentUpdated   bool                    `json:"content_updated"`
	EntriesTouched   int                     `json:"entries_touched"`
	DocumentsCreated []database.Document     `json:"documents_created"`
	File             *database.PacerHTMLFile `json:"file,omitempty"`
}

func (m *Merger) checkCourt(courtID string) error {
	if !m.courts.Exists(courtID) {
		return fmt.Errorf("%w: unknown court %q", ErrValidation, courtID)
	}
	return nil
}

func keyFromReport(r *report.DocketReport) DocketKey {
	return DocketKey{
		CourtID:                        r.CourtID,
		PacerCaseID:                    r.PacerCaseID,
		DocketNumber:                   r.DocketNumber,
		FederalDefendantNumber:         r.FederalDefendantNumber,
		FederalDNJudgeInitialsAssigned: r.FederalDNJudgeInitialsAssigned,
		FederalDNJudgeInitialsReferred: r.FederalDNJudgeInitialsReferred,
	}
}

// MergeDocket merges a scraped docket report: docket metadata, parties and
// attorneys, entries and documents, and bankruptcy data, then archives the
// source page.
func (m *Merger) MergeDocket(ctx context.Context, upload *report.DocketUpload) (*DocketResult, error) {
	start := time.Now()
	res, err := m.mergeDocket(ctx, upload)
	metrics.ObserveMerge(metrics.KindDocket, start, err)
	return res, err
}

func (m *Merger) mergeDocket(ctx context.Context, upload *report.DocketUpload) (*DocketResult, error) {
	r := &upload.Report
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := m.checkCourt(r.CourtID); err != nil {
		return nil, err
	}

	res := &DocketResult{}
	var d *database.Docket
	var tags []database.Tag
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
			var err error
			d, err = m.findDocket(tx, keyFromReport(r))
			if err != nil {
				return err
			}
			res.Created = isNew(d)
			if err := m.saveDocketMetadata(ctx, tx, d, r, upload.Appellate); err != nil {
				return err
			}
			if tags, err = ensureTags(tx, upload.Tags); err != nil {
				return err
			}
			return tagObjects(tx, tags, tagObjectDocket, d.ID)
		})
		// A concurrent merge created the same docket; the second pass finds it.
		if !errors.Is(err, ErrConflict) {
			break
		}
		m.logger.Info("Docket created concurrently, retrying lookup", "court", r.CourtID, "docketNumber", r.DocketNumber)
	}
	if err != nil {
		return nil, err
	}
	if res.Created {
		metrics.RowsCreated("dockets", 1)
	}

	res.File = m.archiveDocket(ctx, d, upload)

	if err := m.AddPartiesAndAttorneys(ctx, d, r.Parties); err != nil {
		return nil, err
	}
	if len(r.Parties) > 0 {
		m.indexer.IndexParties(d.ID)
	}

	entries, err := m.AddDocketEntries(ctx, d, r.DocketEntries, EntryOptions{Tags: tags})
	if err != nil {
		return nil, err
	}
	res.ContentUpdated = entries.ContentUpdated
	res.EntriesTouched = len(entries.Entries)
	res.DocumentsCreated = entries.DocumentsCreated
	m.ProcessOrphanDocuments(ctx, entries.DocumentsCreated, d.CourtID, d.DateFiled)

	if err := m.AddBankruptcyData(ctx, d, r.Bankruptcy); err != nil {
		return nil, err
	}
	if err := m.AddClaims(ctx, d, r.Claims, upload.Tags); err != nil {
		return nil, err
	}

	res.Docket = *d
	m.logger.Info("Merged docket",
		"docketID", d.ID,
		"court", d.CourtID,
		"created", res.Created,
		"entries", res.EntriesTouched,
		"documentsCreated", len(res.DocumentsCreated))
	return res, nil
}

// saveDocketMetadata applies r to d and writes d along with its originating
// court record.
func (m *Merger) saveDocketMetadata(ctx context.Context, tx *gorm.DB, d *database.Docket, r *report.DocketReport, appellate bool) error {
	d.Source |= database.SourceRECAP
	if err := m.updateDocketMetadata(ctx, tx, d, r); err != nil {
		return err
	}
	var og *database.OriginatingCourtInformation
	if appellate {
		var err error
		if og, err = m.updateAppellateMetadata(ctx, tx, d, r); err != nil {
			return err
		}
	}
	if og != nil {
		if err := tx.Save(og).Error; err != nil {
			return classify(err)
		}
		d.OriginatingCourtInformationID = &og.ID
	}
	return classify(tx.Save(d).Error)
}

// archiveDocket keeps the source page. HTML pages are stored as-is; reports
// without one are stored as their JSON form. Failures are logged only.
func (m *Merger) archiveDocket(ctx context.Context, d *database.Docket, upload *report.DocketUpload) *database.PacerHTMLFile {
	if m.archive == nil {
		return nil
	}
	uploadType := database.UploadDocket
	if upload.Appellate {
		uploadType = database.UploadAppellateDocket
	}
	name, content := "docket.html", []byte(upload.RawPage)
	if upload.RawPage == "" {
		b, err := json.Marshal(upload.Report)
		if err != nil {
			m.logger.Warn("Failed to encode docket for archiving", "docketID", d.ID, "error", err)
			return nil
		}
		name, content = "docket.json", b
	}
	file, err := m.archive.Save(ctx, archive.ObjectDocket, d.ID, uploadType, name, content)
	if err != nil {
		m.logger.Warn("Failed to archive docket page", "docketID", d.ID, "error", err)
		return nil
	}
	return file
}

// ProcessCaseQueryReport merges a case query page into the docket it
// describes, creating the docket if needed. Conflicting concurrent creates
// are retried with a short fixed delay.
func (m *Merger) ProcessCaseQueryReport(ctx context.Context, upload *report.CaseQueryUpload) (*database.Docket, error) {
	start := time.Now()
	d, err := m.processCaseQueryReport(ctx, upload)
	metrics.ObserveMerge(metrics.KindCaseQuery, start, err)
	return d, err
}

func (m *Merger) processCaseQueryReport(ctx context.Context, upload *report.CaseQueryUpload) (*database.Docket, error) {
	if err := upload.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := m.checkCourt(upload.CourtID); err != nil {
		return nil, err
	}
	r := upload.DocketReport()

	d, err := m.retryOnConflict(ctx, "case_query", func() (*database.Docket, error) {
		return database.WithTransactionResult(ctx, m.db, func(tx *gorm.DB) (*database.Docket, error) {
			d, err := m.findDocket(tx, keyFromReport(&r))
			if err != nil {
				return nil, err
			}
			// The page is authoritative for the case id it was fetched by.
			d.PacerCaseID = ptr(upload.PacerCaseID)
			if err := m.saveDocketMetadata(ctx, tx, d, &r, false); err != nil {
				return nil, err
			}
			return d, addBankruptcyData(tx, d, r.Bankruptcy)
		})
	})
	if err != nil {
		return nil, err
	}
	m.archiveCaseQuery(ctx, d, upload.Text)
	return d, nil
}

// MergeCaseQueryIntoDocket applies a case query report to a known docket.
func (m *Merger) MergeCaseQueryIntoDocket(ctx context.Context, docketID uint, r *report.DocketReport, text string, tagNames []string) (*database.Docket, error) {
	start := time.Now()
	d, err := m.retryOnConflict(ctx, "case_query", func() (*database.Docket, error) {
		return database.WithTransactionResult(ctx, m.db, func(tx *gorm.DB) (*database.Docket, error) {
			var d database.Docket
			if err := tx.First(&d, docketID).Error; err != nil {
				return nil, classify(err)
			}
			in := *r
			in.CourtID = d.CourtID
			if err := m.saveDocketMetadata(ctx, tx, &d, &in, false); err != nil {
				return nil, err
			}
			if err := addBankruptcyData(tx, &d, in.Bankruptcy); err != nil {
				return nil, err
			}
			tags, err := ensureTags(tx, tagNames)
			if err != nil {
				return nil, err
			}
			return &d, tagObjects(tx, tags, tagObjectDocket, d.ID)
		})
	})
	metrics.ObserveMerge(metrics.KindCaseQuery, start, err)
	if err != nil {
		return nil, err
	}
	m.archiveCaseQuery(ctx, d, text)
	return d, nil
}

func (m *Merger) archiveCaseQuery(ctx context.Context, d *database.Docket, text string) {
	if m.archive == nil || text == "" {
		return
	}
	if _, err := m.archive.Save(ctx, archive.ObjectDocket, d.ID, database.UploadCaseQueryPage, "case_report.html", []byte(text)); err != nil {
		m.logger.Warn("Failed to archive case query page", "docketID", d.ID, "error", err)
	}
}

// retryOnConflict runs op under the case query retry policy. Only unique
// constraint conflicts are retried.
func (m *Merger) retryOnConflict(ctx context.Context, operation string, op func() (*database.Docket, error)) (*database.Docket, error) {
	attempts := m.caseQueryRetry.Attempts
	if attempts == 0 {
		attempts = 1
	}
	attempt := 0
	return backoff.Retry(ctx, func() (*database.Docket, error) {
		if attempt > 0 {
			metrics.Retry(operation)
		}
		attempt++
		d, err := op()
		if err = classify(err); err != nil && !errors.Is(err, ErrConflict) {
			return nil, backoff.Permanent(err)
		}
		return d, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.caseQueryRetry.Delay)),
		backoff.WithMaxTries(attempts),
	)
}
