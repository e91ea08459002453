package report

import "fmt"

// DocketUpload is one docket merge request.
type DocketUpload struct {
	Report    DocketReport `json:"report"`
	Appellate bool         `json:"appellate"`
	Tags      []string     `json:"tags"`
	// RawPage is the HTML response the report was parsed from. ACMS reports
	// are assembled from API calls and have none; the report itself is then
	// archived as JSON.
	RawPage string `json:"raw_page"`
}

// AttachmentPageUpload is one parsed attachment page for a docket entry.
type AttachmentPageUpload struct {
	CourtID     string `json:"court_id" validate:"required"`
	PacerCaseID string `json:"pacer_case_id"`
	// PacerDocID identifies the entry's main document.
	PacerDocID string `json:"pacer_doc_id" validate:"required"`
	// DocumentNumber is absent on bankruptcy and appellate attachment pages.
	DocumentNumber *string      `json:"document_number"`
	Text           *string      `json:"text"`
	Attachments    []Attachment `json:"attachments"`
	IsACMS         bool         `json:"is_acms"`
}

func (u *AttachmentPageUpload) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid attachment page: %w", err)
	}
	return nil
}

// CaseQueryUpload is one case query (iquery) page.
type CaseQueryUpload struct {
	CourtID     string `json:"court_id" validate:"required"`
	PacerCaseID string `json:"pacer_case_id" validate:"required"`
	// Report carries no ids of its own; they come from the page's query.
	Report DocketReport `json:"report" validate:"-"`
	Text   string       `json:"text"`
}

// DocketReport returns the page's report keyed by the upload's court and
// case ids.
func (u *CaseQueryUpload) DocketReport() DocketReport {
	r := u.Report
	r.CourtID = u.CourtID
	r.PacerCaseID = u.PacerCaseID
	return r
}

func (u *CaseQueryUpload) Validate() error {
	if err := validate.Struct(u); err != nil {
		return fmt.Errorf("invalid case query: %w", err)
	}
	r := u.DocketReport()
	if err := validate.Struct(&r); err != nil {
		return fmt.Errorf("invalid case query: %w", err)
	}
	return nil
}
