package database

import (
	"time"
)

// Model is the common row header. Rows are hard-deleted, so there is no
// soft-delete column.
type Model struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SourceRECAP marks a docket as having received scraped report data.
const SourceRECAP = 1

type Docket struct {
	Model
	CourtID      string  `json:"court_id" gorm:"not null;index;uniqueIndex:idx_docket_court_case_core,priority:1"`
	PacerCaseID  *string `json:"pacer_case_id" gorm:"index;uniqueIndex:idx_docket_court_case_core,priority:2"`
	DocketNumber string  `json:"docket_number"`
	// DocketNumberCore is NULL when no core could be derived so that the
	// unique index ignores it.
	DocketNumberCore *string `json:"docket_number_core" gorm:"index;uniqueIndex:idx_docket_court_case_core,priority:3"`
	Source           int     `json:"source"`

	FederalDNOfficeCode            string `json:"federal_dn_office_code"`
	FederalDNCaseType              string `json:"federal_dn_case_type"`
	FederalDNJudgeInitialsAssigned string `json:"federal_dn_judge_initials_assigned"`
	FederalDNJudgeInitialsReferred string `json:"federal_dn_judge_initials_referred"`
	FederalDefendantNumber         string `json:"federal_defendant_number"`

	CaseName         string     `json:"case_name" gorm:"type:text"`
	CaseNameShort    string     `json:"case_name_short"`
	DateFiled        *time.Time `json:"date_filed"`
	DateTerminated   *time.Time `json:"date_terminated"`
	DateLastFiling   *time.Time `json:"date_last_filing"`
	Cause            string     `json:"cause"`
	NatureOfSuit     string     `json:"nature_of_suit"`
	JuryDemand       string     `json:"jury_demand"`
	JurisdictionType string     `json:"jurisdiction_type"`
	MDLStatus        string     `json:"mdl_status"`

	AssignedToID  *uint  `json:"assigned_to_id"`
	AssignedToStr string `json:"assigned_to_str"`
	ReferredToID  *uint  `json:"referred_to_id"`
	ReferredToStr string `json:"referred_to_str"`

	Blocked     bool       `json:"blocked"`
	DateBlocked *time.Time `json:"date_blocked"`

	PanelStr                     string `json:"panel_str"`
	AppellateFeeStatus           string `json:"appellate_fee_status"`
	AppellateCaseTypeInformation string `json:"appellate_case_type_information"`
	AppealFromStr                string `json:"appeal_from_str"`
	AppealFromID                 string `json:"appeal_from_id"`

	OriginatingCourtInformationID *uint                        `json:"originating_court_information_id"`
	OriginatingCourtInformation   *OriginatingCourtInformation `json:"originating_court_information,omitempty"`

	IANeedsUpload bool `json:"ia_needs_upload"`

	DocketEntries []DocketEntry `json:"docket_entries,omitempty"`
}

// OriginatingCourtInformation is the lower-court satellite of an appellate
// docket.
type OriginatingCourtInformation struct {
	Model
	DocketNumber     string     `json:"docket_number"`
	CourtReporter    string     `json:"court_reporter"`
	DateDisposed     *time.Time `json:"date_disposed"`
	DateFiled        *time.Time `json:"date_filed"`
	DateJudgment     *time.Time `json:"date_judgment"`
	DateJudgmentEOD  *time.Time `json:"date_judgment_eod"`
	DateFiledNOA     *time.Time `json:"date_filed_noa"`
	DateReceivedCOA  *time.Time `json:"date_received_coa"`
	AssignedToID     *uint      `json:"assigned_to_id"`
	AssignedToStr    string     `json:"assigned_to_str"`
	OrderingJudgeID  *uint      `json:"ordering_judge_id"`
	OrderingJudgeStr string     `json:"ordering_judge_str"`
}

type DocketEntry struct {
	Model
	DocketID            uint       `json:"docket_id" gorm:"not null;index:idx_entry_docket_number,priority:1"`
	EntryNumber         *int64     `json:"entry_number" gorm:"index:idx_entry_docket_number,priority:2"`
	PacerSequenceNumber *int       `json:"pacer_sequence_number"`
	RecapSequenceNumber string     `json:"recap_sequence_number"`
	DateFiled           *time.Time `json:"date_filed" gorm:"index"`
	TimeFiled           *string    `json:"time_filed"`
	Description         string     `json:"description" gorm:"type:text"`
	Documents           []Document `json:"documents,omitempty"`
}

// DocumentKind tags a document as the entry's main filing or one of its
// attachments. A MAIN row can move to ATTACHMENT in place.
type DocumentKind int

const (
	DocumentMain       DocumentKind = 1
	DocumentAttachment DocumentKind = 2
)

func (k DocumentKind) String() string {
	switch k {
	case DocumentMain:
		return "main"
	case DocumentAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

type Document struct {
	Model
	DocketEntryID    uint         `json:"docket_entry_id" gorm:"not null;index;uniqueIndex:idx_document_slot,priority:1"`
	DocumentType     DocumentKind `json:"document_type" gorm:"not null"`
	DocumentNumber   string       `json:"document_number" gorm:"uniqueIndex:idx_document_slot,priority:2"`
	AttachmentNumber *int         `json:"attachment_number" gorm:"uniqueIndex:idx_document_slot,priority:3"`
	PacerDocID       string       `json:"pacer_doc_id" gorm:"index"`
	ACMSDocumentGUID string       `json:"acms_document_guid"`
	Description      string       `json:"description" gorm:"type:text"`
	PageCount        *int         `json:"page_count"`
	FileSize         *int64       `json:"file_size"`
	IsAvailable      bool         `json:"is_available"`
	FilepathLocal    string       `json:"filepath_local"`

	DocketEntry *DocketEntry `json:"-"`
}

type Party struct {
	Model
	Name       string      `json:"name" gorm:"type:text;index"`
	ExtraInfo  string      `json:"extra_info" gorm:"type:text"`
	PartyTypes []PartyType `json:"party_types,omitempty"`
}

type PartyType struct {
	Model
	DocketID                      uint                `json:"docket_id" gorm:"not null;index"`
	PartyID                       uint                `json:"party_id" gorm:"not null;index"`
	Name                          string              `json:"name"`
	DateTerminated                *time.Time          `json:"date_terminated"`
	ExtraInfo                     string              `json:"extra_info" gorm:"type:text"`
	HighestOffenseLevelOpening    string              `json:"highest_offense_level_opening"`
	HighestOffenseLevelTerminated string              `json:"highest_offense_level_terminated"`
	CriminalCounts                []CriminalCount     `json:"criminal_counts,omitempty"`
	CriminalComplaints            []CriminalComplaint `json:"criminal_complaints,omitempty"`
}

type CriminalCount struct {
	Model
	PartyTypeID uint   `json:"party_type_id" gorm:"not null;index"`
	Name        string `json:"name" gorm:"type:text"`
	Disposition string `json:"disposition" gorm:"type:text"`
	Status      int    `json:"status"`
}

const (
	CriminalCountPending    = 1
	CriminalCountTerminated = 2
)

type CriminalComplaint struct {
	Model
	PartyTypeID uint   `json:"party_type_id" gorm:"not null;index"`
	Name        string `json:"name" gorm:"type:text"`
	Disposition string `json:"disposition" gorm:"type:text"`
}

type Attorney struct {
	Model
	Name       string `json:"name" gorm:"type:text;index"`
	ContactRaw string `json:"contact_raw" gorm:"type:text"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Fax        string `json:"fax"`
}

type AttorneyOrganization struct {
	Model
	LookupKey string `json:"lookup_key" gorm:"not null;uniqueIndex"`
	Name      string `json:"name" gorm:"type:text"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code"`
}

type AttorneyOrganizationAssociation struct {
	Model
	AttorneyID             uint `json:"attorney_id" gorm:"not null;uniqueIndex:idx_atty_org_docket,priority:1"`
	AttorneyOrganizationID uint `json:"attorney_organization_id" gorm:"not null;uniqueIndex:idx_atty_org_docket,priority:2"`
	DocketID               uint `json:"docket_id" gorm:"not null;uniqueIndex:idx_atty_org_docket,priority:3"`
}

// RoleKind enumerates an attorney's role for a party on a docket.
type RoleKind int

const (
	RoleAttorneyToBeNoticed   RoleKind = 1
	RoleAttorneyLead          RoleKind = 2
	RoleAttorneyInSealedGroup RoleKind = 3
	RoleProHacVice            RoleKind = 4
	RoleSelfTerminated        RoleKind = 5
	RoleTerminated            RoleKind = 6
	RoleSuspended             RoleKind = 7
	RoleInactive              RoleKind = 8
	RoleDisbarred             RoleKind = 9
	RoleUnknown               RoleKind = 10
)

// IsTermination reports whether the role marks the attorney as off the case.
func (r RoleKind) IsTermination() bool {
	return r == RoleTerminated || r == RoleSelfTerminated
}

type Role struct {
	Model
	AttorneyID uint       `json:"attorney_id" gorm:"not null;index"`
	PartyID    uint       `json:"party_id" gorm:"not null;index"`
	DocketID   uint       `json:"docket_id" gorm:"not null;index"`
	Role       RoleKind   `json:"role"`
	RoleRaw    string     `json:"role_raw"`
	DateAction *time.Time `json:"date_action"`
}

type BankruptcyInformation struct {
	Model
	DocketID             uint       `json:"docket_id" gorm:"not null;uniqueIndex"`
	DateConverted        *time.Time `json:"date_converted"`
	DateLastToFileClaims *time.Time `json:"date_last_to_file_claims"`
	DateLastToFileGovt   *time.Time `json:"date_last_to_file_govt"`
	DateDebtorDismissed  *time.Time `json:"date_debtor_dismissed"`
	Chapter              string     `json:"chapter"`
	TrusteeStr           string     `json:"trustee_str" gorm:"type:text"`
}

type Claim struct {
	Model
	DocketID                 uint       `json:"docket_id" gorm:"not null;uniqueIndex:idx_claim_docket_number,priority:1"`
	ClaimNumber              string     `json:"claim_number" gorm:"uniqueIndex:idx_claim_docket_number,priority:2"`
	DateClaimModified        *time.Time `json:"date_claim_modified"`
	DateOriginalEntered      *time.Time `json:"date_original_entered"`
	DateOriginalFiled        *time.Time `json:"date_original_filed"`
	DateLastAmendmentEntered *time.Time `json:"date_last_amendment_entered"`
	DateLastAmendmentFiled   *time.Time `json:"date_last_amendment_filed"`
	CreditorDetails          string     `json:"creditor_details" gorm:"type:text"`
	CreditorID               string     `json:"creditor_id"`
	Status                   string     `json:"status"`
	EnteredBy                string     `json:"entered_by"`
	FiledBy                  string     `json:"filed_by"`
	AmountClaimed            string     `json:"amount_claimed"`
	UnsecuredClaimed         string     `json:"unsecured_claimed"`
	SecuredClaimed           string     `json:"secured_claimed"`
	PriorityClaimed          string     `json:"priority_claimed"`
	Description              string     `json:"description" gorm:"type:text"`
	Remarks                  string     `json:"remarks" gorm:"type:text"`
}

// ClaimDocumentType says whether a claim history row came from the docket or
// from the claims register.
type ClaimDocumentType int

const (
	ClaimHistoryDocketEntry ClaimDocumentType = 1
	ClaimHistoryClaimEntry  ClaimDocumentType = 2
)

type ClaimHistory struct {
	Model
	ClaimID           uint              `json:"claim_id" gorm:"not null;index"`
	ClaimDocumentType ClaimDocumentType `json:"claim_document_type"`
	DateFiled         *time.Time        `json:"date_filed"`
	PacerCaseID       string            `json:"pacer_case_id"`
	DocumentNumber    string            `json:"document_number"`
	AttachmentNumber  *int              `json:"attachment_number"`
	PacerDocID        string            `json:"pacer_doc_id"`
	PacerDMID         *int              `json:"pacer_dm_id"`
	PacerSeqNo        *int              `json:"pacer_seq_no"`
	ClaimDocID        string            `json:"claim_doc_id"`
	Description       string            `json:"description" gorm:"type:text"`
}

type Tag struct {
	Model
	Name string `json:"name" gorm:"not null;uniqueIndex"`
}

// TaggedObject links a tag to any tagged row by (object type, object id).
type TaggedObject struct {
	Model
	TagID      uint   `json:"tag_id" gorm:"not null;uniqueIndex:idx_tagged_object,priority:1"`
	ObjectType string `json:"object_type" gorm:"not null;uniqueIndex:idx_tagged_object,priority:2"`
	ObjectID   uint   `json:"object_id" gorm:"not null;uniqueIndex:idx_tagged_object,priority:3"`
}

// UploadType identifies what kind of raw page an archived file holds.
type UploadType int

const (
	UploadDocket          UploadType = 1
	UploadAttachmentPage  UploadType = 2
	UploadPDF             UploadType = 3
	UploadCaseQueryPage   UploadType = 4
	UploadAppellateDocket UploadType = 5
)

// PacerHTMLFile records one archived raw source page.
type PacerHTMLFile struct {
	Model
	ObjectType string     `json:"object_type" gorm:"not null;index:idx_html_file_object,priority:1"`
	ObjectID   uint       `json:"object_id" gorm:"not null;index:idx_html_file_object,priority:2"`
	UploadType UploadType `json:"upload_type"`
	Filepath   string     `json:"filepath"`
}

// ProcessingStatus of an upload waiting in the processing queue.
type ProcessingStatus int

const (
	ProcessingEnqueued   ProcessingStatus = 1
	ProcessingSuccessful ProcessingStatus = 2
	ProcessingFailed     ProcessingStatus = 3
	ProcessingInProgress ProcessingStatus = 4
)

// ProcessingQueue rows belong to the upload pipeline. The merger only reads
// failed PDF uploads from here and hands them back for reprocessing.
type ProcessingQueue struct {
	Model
	CourtID      string           `json:"court_id" gorm:"index"`
	PacerCaseID  string           `json:"pacer_case_id"`
	PacerDocID   string           `json:"pacer_doc_id" gorm:"index"`
	UploadType   UploadType       `json:"upload_type"`
	Status       ProcessingStatus `json:"status" gorm:"index"`
	ErrorMessage string           `json:"error_message" gorm:"type:text"`
	Debug        bool             `json:"debug"`
}

// Judge is the minimal person record the judge lookup resolves against.
type Judge struct {
	Model
	CourtID   string     `json:"court_id" gorm:"index"`
	NameFirst string     `json:"name_first"`
	NameLast  string     `json:"name_last" gorm:"index"`
	NameFull  string     `json:"name_full" gorm:"index"`
	DateStart *time.Time `json:"date_start"`
	DateEnd   *time.Time `json:"date_end"`
}

func (Docket) TableName() string                          { return "dockets" }
func (OriginatingCourtInformation) TableName() string     { return "originating_court_information" }
func (DocketEntry) TableName() string                     { return "docket_entries" }
func (Document) TableName() string                        { return "documents" }
func (Party) TableName() string                           { return "parties" }
func (PartyType) TableName() string                       { return "party_types" }
func (CriminalCount) TableName() string                   { return "criminal_counts" }
func (CriminalComplaint) TableName() string               { return "criminal_complaints" }
func (Attorney) TableName() string                        { return "attorneys" }
func (AttorneyOrganization) TableName() string            { return "attorney_organizations" }
func (AttorneyOrganizationAssociation) TableName() string { return "attorney_org_associations" }
func (Role) TableName() string                            { return "roles" }
func (BankruptcyInformation) TableName() string           { return "bankruptcy_information" }
func (Claim) TableName() string                           { return "claims" }
func (ClaimHistory) TableName() string                    { return "claim_histories" }
func (Tag) TableName() string                             { return "tags" }
func (TaggedObject) TableName() string                    { return "tagged_objects" }
func (PacerHTMLFile) TableName() string                   { return "pacer_html_files" }
func (ProcessingQueue) TableName() string                 { return "processing_queue" }
func (Judge) TableName() string                           { return "judges" }
