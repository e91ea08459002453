package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/report"
	"gorm.io/gorm"
)

// AddBankruptcyData stores the bankruptcy fields of b on d's bankruptcy
// record. Blank incoming fields leave stored values alone and nothing is
// written when b carries no data.
func (m *Merger) AddBankruptcyData(ctx context.Context, d *database.Docket, b report.Bankruptcy) error {
	return database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
		return addBankruptcyData(tx, d, b)
	})
}

func hasBankruptcyData(b report.Bankruptcy) bool {
	return b.DateConverted != nil || b.DateLastToFileClaims != nil || b.DateLastToFileGovt != nil ||
		b.DateDebtorDismissed != nil || b.Chapter != "" || b.TrusteeStr != ""
}

func addBankruptcyData(tx *gorm.DB, d *database.Docket, b report.Bankruptcy) error {
	if !hasBankruptcyData(b) {
		return nil
	}
	info, err := getOne[database.BankruptcyInformation](tx.Model(&database.BankruptcyInformation{}).Where("docket_id = ?", d.ID))
	if errors.Is(err, ErrNotFound) {
		info, err = &database.BankruptcyInformation{DocketID: d.ID}, nil
	}
	if err != nil {
		return err
	}
	info.DateConverted = firstNonNil(b.DateConverted.Calendar(), info.DateConverted)
	info.DateLastToFileClaims = firstNonNil(b.DateLastToFileClaims.Calendar(), info.DateLastToFileClaims)
	info.DateLastToFileGovt = firstNonNil(b.DateLastToFileGovt.Calendar(), info.DateLastToFileGovt)
	info.DateDebtorDismissed = firstNonNil(b.DateDebtorDismissed.Calendar(), info.DateDebtorDismissed)
	info.Chapter = firstNonEmpty(b.Chapter, info.Chapter)
	info.TrusteeStr = firstNonEmpty(b.TrusteeStr, info.TrusteeStr)
	return classify(tx.Save(info).Error)
}

// AddClaims merges a claims register into d. Claims are matched by claim
// number and their history rows by the ids the register gives them.
func (m *Merger) AddClaims(ctx context.Context, d *database.Docket, claims []report.Claim, tagNames []string) error {
	if len(claims) == 0 {
		return nil
	}
	return database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
		if err := database.AcquireDocketLease(tx, d.ID); err != nil {
			return classify(err)
		}
		tags, err := ensureTags(tx, tagNames)
		if err != nil {
			return err
		}
		for _, c := range claims {
			claim, err := upsertClaim(tx, d, c)
			if err != nil {
				return fmt.Errorf("claim %s: %w", c.ClaimNumber, err)
			}
			if err := tagObjects(tx, tags, tagObjectClaim, claim.ID); err != nil {
				return err
			}
			for _, h := range c.History {
				if err := addClaimHistoryEntry(tx, claim, h); err != nil {
					return fmt.Errorf("claim %s history: %w", c.ClaimNumber, err)
				}
			}
		}
		return nil
	})
}

func upsertClaim(tx *gorm.DB, d *database.Docket, c report.Claim) (*database.Claim, error) {
	claim := database.Claim{DocketID: d.ID, ClaimNumber: c.ClaimNumber}
	if err := tx.Where(&claim).FirstOrCreate(&claim).Error; err != nil {
		return nil, classify(err)
	}
	claim.DateClaimModified = firstNonNil(c.DateClaimModified.Calendar(), claim.DateClaimModified)
	claim.DateOriginalEntered = firstNonNil(c.DateOriginalEntered.Calendar(), claim.DateOriginalEntered)
	claim.DateOriginalFiled = firstNonNil(c.DateOriginalFiled.Calendar(), claim.DateOriginalFiled)
	claim.DateLastAmendmentEntered = firstNonNil(c.DateLastAmendmentEntered.Calendar(), claim.DateLastAmendmentEntered)
	claim.DateLastAmendmentFiled = firstNonNil(c.DateLastAmendmentFiled.Calendar(), claim.DateLastAmendmentFiled)
	claim.CreditorDetails = firstNonEmpty(c.CreditorDetails, claim.CreditorDetails)
	claim.CreditorID = firstNonEmpty(c.CreditorID, claim.CreditorID)
	claim.Status = firstNonEmpty(c.Status, claim.Status)
	claim.EnteredBy = firstNonEmpty(c.EnteredBy, claim.EnteredBy)
	claim.FiledBy = firstNonEmpty(c.FiledBy, claim.FiledBy)
	claim.AmountClaimed = firstNonEmpty(c.AmountClaimed, claim.AmountClaimed)
	claim.UnsecuredClaimed = firstNonEmpty(c.UnsecuredClaimed, claim.UnsecuredClaimed)
	claim.SecuredClaimed = firstNonEmpty(c.SecuredClaimed, claim.SecuredClaimed)
	claim.PriorityClaimed = firstNonEmpty(c.PriorityClaimed, claim.PriorityClaimed)
	claim.Description = firstNonEmpty(c.Description, claim.Description)
	claim.Remarks = firstNonEmpty(c.Remarks, claim.Remarks)
	if err := tx.Save(&claim).Error; err != nil {
		return nil, classify(err)
	}
	return &claim, nil
}

// addClaimHistoryEntry records one history row of a claim. Rows without a
// document number cannot be told apart and are skipped.
func addClaimHistoryEntry(tx *gorm.DB, claim *database.Claim, h report.ClaimHistory) error {
	if h.DocumentNumber == nil {
		return nil
	}
	q := tx.Model(&database.ClaimHistory{}).
		Where("claim_id = ? AND document_number = ? AND pacer_case_id = ?", claim.ID, *h.DocumentNumber, h.PacerCaseID)
	q = whereNullable(q, "date_filed", h.DateFiled.Calendar())
	row := database.ClaimHistory{
		ClaimID:        claim.ID,
		DateFiled:      h.DateFiled.Calendar(),
		PacerCaseID:    h.PacerCaseID,
		DocumentNumber: *h.DocumentNumber,
	}

	if h.Type == report.ClaimHistoryDocketEntry {
		q = q.Where("claim_document_type = ? AND pacer_doc_id = ?", database.ClaimHistoryDocketEntry, h.PacerDocID)
		row.ClaimDocumentType = database.ClaimHistoryDocketEntry
		row.PacerDocID = h.PacerDocID
	} else {
		q = q.Where("claim_document_type = ? AND claim_doc_id = ?", database.ClaimHistoryClaimEntry, h.ID)
		q = whereNullable(q, "attachment_number", h.AttachmentNumber)
		row.ClaimDocumentType = database.ClaimHistoryClaimEntry
		row.ClaimDocID = h.ID
		row.AttachmentNumber = h.AttachmentNumber
	}

	existing, err := earliest[database.ClaimHistory](q)
	switch {
	case err == nil:
		row = *existing
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if h.Type == report.ClaimHistoryDocketEntry {
		row.PacerDMID = firstNonNil(h.PacerDMID, row.PacerDMID)
		row.PacerSeqNo = h.PacerSeqNo
	}
	row.Description = firstNonEmpty(h.Description, row.Description)
	return classify(tx.Save(&row).Error)
}

// whereNullable adds col = v, or col IS NULL when v is nil.
func whereNullable[T any](q *gorm.DB, col string, v *T) *gorm.DB {
	if v == nil {
		return q.Where(col + " IS NULL")
	}
	return q.Where(col+" = ?", *v)
}
