// Package report defines the structured records produced by the upstream
// court-record scraper. The merger consumes these as-is; nothing here talks
// to storage.
package report

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// DocketReport is one scraped docket (district, bankruptcy or appellate),
// docket history report, or case query page.
type DocketReport struct {
	CourtID      string `json:"court_id" validate:"required"`
	PacerCaseID  string `json:"pacer_case_id"`
	DocketNumber string `json:"docket_number"`

	FederalDNOfficeCode            string `json:"federal_dn_office_code"`
	FederalDNCaseType              string `json:"federal_dn_case_type"`
	FederalDNJudgeInitialsAssigned string `json:"federal_dn_judge_initials_assigned"`
	FederalDNJudgeInitialsReferred string `json:"federal_dn_judge_initials_referred"`
	FederalDefendantNumber         string `json:"federal_defendant_number"`

	CaseName       string `json:"case_name"`
	DateFiled      *Date  `json:"date_filed"`
	DateTerminated *Date  `json:"date_terminated"`
	DateLastFiling *Date  `json:"date_last_filing"`
	Cause          string `json:"cause"`
	NatureOfSuit   string `json:"nature_of_suit"`
	JuryDemand     string `json:"jury_demand"`
	Jurisdiction   string `json:"jurisdiction"`
	MDLStatus      string `json:"mdl_status"`
	AssignedToStr  string `json:"assigned_to_str"`
	ReferredToStr  string `json:"referred_to_str"`

	// Appellate only.
	Panel                       []string          `json:"panel"`
	FeeStatus                   string            `json:"fee_status"`
	CaseTypeInformation         string            `json:"case_type_information"`
	AppealFrom                  string            `json:"appeal_from"`
	OriginatingCourtInformation *OriginatingCourt `json:"originating_court_information"`

	DocketEntries []DocketEntry `json:"docket_entries" validate:"dive"`
	Parties       []Party       `json:"parties" validate:"dive"`

	// Bankruptcy only.
	Bankruptcy
	Claims []Claim `json:"claims" validate:"dive"`
}

// HasAppellateData reports whether any appellate-only field is populated.
func (r *DocketReport) HasAppellateData() bool {
	return r.OriginatingCourtInformation != nil || r.AppealFrom != "" || len(r.Panel) > 0
}

type OriginatingCourt struct {
	CourtID         string `json:"court_id"`
	DocketNumber    string `json:"docket_number"`
	CourtReporter   string `json:"court_reporter"`
	DateDisposed    *Date  `json:"date_disposed"`
	DateFiled       *Date  `json:"date_filed"`
	DateJudgment    *Date  `json:"date_judgment"`
	DateJudgmentEOD *Date  `json:"date_judgment_eod"`
	DateFiledNOA    *Date  `json:"date_filed_noa"`
	DateReceivedCOA *Date  `json:"date_received_coa"`
	AssignedTo      string `json:"assigned_to"`
	OrderingJudge   string `json:"ordering_judge"`
}

type DocketEntry struct {
	DateFiled        *Date        `json:"date_filed"`
	DocumentNumber   string       `json:"document_number"`
	Description      string       `json:"description"`
	ShortDescription string       `json:"short_description"`
	PacerDocID       string       `json:"pacer_doc_id"`
	PacerSeqNo       *int         `json:"pacer_seq_no"`
	AttachmentNumber *int         `json:"attachment_number"`
	Attachments      []Attachment `json:"attachments"`

	// RecapSequenceNumber is filled in by the sequence assigner.
	RecapSequenceNumber string `json:"recap_sequence_number,omitempty"`
}

type Attachment struct {
	AttachmentNumber *int        `json:"attachment_number"`
	PacerDocID       string      `json:"pacer_doc_id"`
	Description      string      `json:"description"`
	PageCount        OptionalInt `json:"page_count"`
	FileSizeBytes    *int64      `json:"file_size_bytes"`
	FileSizeStr      string      `json:"file_size_str"`
	ACMSDocumentGUID string      `json:"acms_document_guid"`
}

type Party struct {
	Name           string        `json:"name" validate:"required"`
	Type           string        `json:"type"`
	ExtraInfo      string        `json:"extra_info"`
	DateTerminated *Date         `json:"date_terminated"`
	CriminalData   *CriminalData `json:"criminal_data"`
	Attorneys      []Attorney    `json:"attorneys" validate:"dive"`
}

type CriminalData struct {
	HighestOffenseLevelOpening    string              `json:"highest_offense_level_opening"`
	HighestOffenseLevelTerminated string              `json:"highest_offense_level_terminated"`
	Counts                        []CriminalCount     `json:"counts"`
	Complaints                    []CriminalComplaint `json:"complaints"`
}

type CriminalCount struct {
	Name        string `json:"name"`
	Disposition string `json:"disposition"`
	Status      string `json:"status"`
}

type CriminalComplaint struct {
	Name        string `json:"name"`
	Disposition string `json:"disposition"`
}

type Attorney struct {
	Name    string   `json:"name" validate:"required"`
	Contact string   `json:"contact"`
	Roles   []string `json:"roles"`
}

// Bankruptcy holds the bankruptcy-only docket fields.
type Bankruptcy struct {
	DateConverted        *Date  `json:"date_converted"`
	DateLastToFileClaims *Date  `json:"date_last_to_file_claims"`
	DateLastToFileGovt   *Date  `json:"date_last_to_file_govt"`
	DateDebtorDismissed  *Date  `json:"date_debtor_dismissed"`
	Chapter              string `json:"chapter"`
	TrusteeStr           string `json:"trustee_str"`
}

type Claim struct {
	ClaimNumber              string         `json:"claim_number" validate:"required"`
	DateClaimModified        *Date          `json:"date_claim_modified"`
	DateOriginalEntered      *Date          `json:"date_original_entered"`
	DateOriginalFiled        *Date          `json:"date_original_filed"`
	DateLastAmendmentEntered *Date          `json:"date_last_amendment_entered"`
	DateLastAmendmentFiled   *Date          `json:"date_last_amendment_filed"`
	CreditorDetails          string         `json:"creditor_details"`
	CreditorID               string         `json:"creditor_id"`
	Status                   string         `json:"status"`
	EnteredBy                string         `json:"entered_by"`
	FiledBy                  string         `json:"filed_by"`
	AmountClaimed            string         `json:"amount_claimed"`
	UnsecuredClaimed         string         `json:"unsecured_claimed"`
	SecuredClaimed           string         `json:"secured_claimed"`
	PriorityClaimed          string         `json:"priority_claimed"`
	Description              string         `json:"description"`
	Remarks                  string         `json:"remarks"`
	History                  []ClaimHistory `json:"history"`
}

// ClaimHistory types.
const (
	ClaimHistoryDocketEntry = "docket_entry"
	ClaimHistoryClaimEntry  = "claim_entry"
)

type ClaimHistory struct {
	Type             string  `json:"type" validate:"omitempty,oneof=docket_entry claim_entry"`
	DocumentNumber   *string `json:"document_number"`
	DateFiled        *Date   `json:"date_filed"`
	PacerCaseID      string  `json:"pacer_case_id"`
	PacerDocID       string  `json:"pacer_doc_id"`
	PacerDMID        *int    `json:"pacer_dm_id"`
	PacerSeqNo       *int    `json:"pacer_seq_no"`
	ID               string  `json:"id"`
	AttachmentNumber *int    `json:"attachment_number"`
	Description      string  `json:"description"`
}

var validate = validator.New()

// Validate checks the report's required fields.
func (r *DocketReport) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid docket report: %w", err)
	}
	return nil
}
