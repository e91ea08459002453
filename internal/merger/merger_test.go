package merger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JustJay7/docket-merger/internal/courts"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const motleyRice = "Motley Rice LLC\n" +
	"20 Church Street\n" +
	"17th Floor\n" +
	"Hartford, CT 06103\n" +
	"860-882-1676\n" +
	"Email: bnarwold@motleyrice.com"

func newTestMerger(t *testing.T, opts ...Option) (*Merger, *gorm.DB) {
	t.Helper()
	db, err := database.Initialize("sqlite:///"+filepath.Join(t.TempDir(), "recap.db"), false)
	require.NoError(t, err)
	reg, err := courts.Default()
	require.NoError(t, err)

	base := []Option{
		WithPartyRetry(RetryPolicy{Attempts: 1}),
		WithCaseQueryRetry(RetryPolicy{Attempts: 1}),
		withClock(func() time.Time { return testNow }),
	}
	return New(db, reg, logger.NewNop(), append(base, opts...)...), db
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func intp(v int) *int { return &v }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func sampleUpload() *report.DocketUpload {
	return &report.DocketUpload{
		Report: report.DocketReport{
			CourtID:       "cand",
			PacerCaseID:   "273011",
			DocketNumber:  "3:14-cv-00123-EMC",
			CaseName:      "Smith v. Acme Corp.",
			DateFiled:     report.NewDate(2014, 1, 2),
			AssignedToStr: "Judge Edward M. Chen",
			NatureOfSuit:  "190 Contract: Other",
			Cause:         "28:1332 Diversity-Breach of Contract",
			Parties: []report.Party{
				{
					Name: "John Smith",
					Type: "Plaintiff",
					Attorneys: []report.Attorney{{
						Name:    "William H. Narwold",
						Contact: motleyRice,
						Roles:   []string{"LEAD ATTORNEY", "ATTORNEY TO BE NOTICED"},
					}},
				},
				{Name: "Acme Corp.", Type: "Defendant"},
			},
			DocketEntries: []report.DocketEntry{
				{
					DateFiled:      report.NewDate(2014, 1, 2),
					DocumentNumber: "1",
					Description:    "COMPLAINT against Acme Corp.",
					PacerDocID:     "035012345670",
					Attachments: []report.Attachment{
						{AttachmentNumber: intp(1), PacerDocID: "035012345680", Description: "Exhibit A",
							PageCount: report.OptionalInt{Present: true, Value: intp(3)}},
					},
				},
				{
					DateFiled:      report.NewDate(2014, 1, 2),
					DocumentNumber: "2",
					Description:    "Civil Cover Sheet",
					PacerDocID:     "035012345671",
				},
				{
					DateFiled:      report.NewDate(2014, 1, 5),
					DocumentNumber: "3",
					Description:    "ORDER setting case management conference",
					PacerDocID:     "035012345672",
				},
			},
		},
		Tags:    []string{"smoke"},
		RawPage: "<html>docket</html>",
	}
}

type savedPage struct {
	objectType string
	objectID   uint
	uploadType database.UploadType
	filename   string
}

type memArchive struct {
	mu    sync.Mutex
	pages []savedPage
}

func (a *memArchive) Save(_ context.Context, objectType string, objectID uint, uploadType database.UploadType, filename string, _ []byte) (*database.PacerHTMLFile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages = append(a.pages, savedPage{objectType, objectID, uploadType, filename})
	return &database.PacerHTMLFile{ObjectType: objectType, ObjectID: objectID, UploadType: uploadType, Filepath: filename}, nil
}

type fixedJudges map[string]uint

func (f fixedJudges) Lookup(_ context.Context, name, _ string, _ *time.Time) (*uint, error) {
	if id, ok := f[name]; ok {
		return &id, nil
	}
	return nil, nil
}

func TestMergeDocketCreatesEverything(t *testing.T) {
	arch := &memArchive{}
	m, db := newTestMerger(t, WithArchiver(arch), WithJudgeFinder(fixedJudges{"Judge Edward M. Chen": 42}))
	ctx := context.Background()

	res, err := m.MergeDocket(ctx, sampleUpload())
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.ContentUpdated)
	assert.Equal(t, 3, res.EntriesTouched)
	assert.Len(t, res.DocumentsCreated, 3)

	var d database.Docket
	require.NoError(t, db.First(&d, res.Docket.ID).Error)
	assert.Equal(t, "273011", *d.PacerCaseID)
	assert.Equal(t, normalize.DocketNumberCore("3:14-cv-00123-EMC"), *d.DocketNumberCore)
	assert.Equal(t, "Smith v. Acme Corp.", d.CaseName)
	assert.Equal(t, database.SourceRECAP, d.Source)
	assert.True(t, d.IANeedsUpload)
	assert.False(t, d.Blocked)
	require.NotNil(t, d.AssignedToID)
	assert.Equal(t, uint(42), *d.AssignedToID)
	require.NotNil(t, d.DateLastFiling)
	assert.True(t, d.DateLastFiling.Equal(day(2014, 1, 5)))

	var entries []database.DocketEntry
	require.NoError(t, db.Order("recap_sequence_number").Find(&entries).Error)
	require.Len(t, entries, 3)
	assert.Equal(t, "2014-01-02.001", entries[0].RecapSequenceNumber)
	assert.Equal(t, "2014-01-02.002", entries[1].RecapSequenceNumber)
	assert.Equal(t, "2014-01-05.001", entries[2].RecapSequenceNumber)

	var exhibit database.Document
	require.NoError(t, db.Where("pacer_doc_id = ?", "035012345680").First(&exhibit).Error)
	assert.Equal(t, database.DocumentAttachment, exhibit.DocumentType)
	assert.Equal(t, 1, *exhibit.AttachmentNumber)
	assert.Equal(t, "1", exhibit.DocumentNumber)
	assert.Equal(t, 3, *exhibit.PageCount)

	assert.EqualValues(t, 1, count(t, db, &database.Tag{}))
	// docket, three entries and three main documents
	assert.EqualValues(t, 7, count(t, db, &database.TaggedObject{}))

	require.NotEmpty(t, arch.pages)
	assert.Equal(t, savedPage{"docket", d.ID, database.UploadDocket, "docket.html"}, arch.pages[0])
}

func TestMergeDocketIsIdempotent(t *testing.T) {
	m, db := newTestMerger(t)
	ctx := context.Background()

	first, err := m.MergeDocket(ctx, sampleUpload())
	require.NoError(t, err)

	tables := []any{
		&database.Docket{}, &database.DocketEntry{}, &database.Document{},
		&database.Party{}, &database.PartyType{}, &database.Attorney{}, &database.Role{},
		&database.AttorneyOrganization{}, &database.AttorneyOrganizationAssociation{},
		&database.Tag{}, &database.TaggedObject{},
	}
	before := make([]int64, len(tables))
	for i, tbl := range tables {
		before[i] = count(t, db, tbl)
	}
	var docsBefore []database.Document
	require.NoError(t, db.Order("id").Find(&docsBefore).Error)

	second, err := m.MergeDocket(ctx, sampleUpload())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.False(t, second.ContentUpdated)
	assert.Empty(t, second.DocumentsCreated)
	assert.Equal(t, first.Docket.ID, second.Docket.ID)

	for i, tbl := range tables {
		assert.Equal(t, before[i], count(t, db, tbl), "%T", tbl)
	}

	var docsAfter []database.Document
	require.NoError(t, db.Order("id").Find(&docsAfter).Error)
	require.Len(t, docsAfter, len(docsBefore))
	for i := range docsBefore {
		assert.Equal(t, docsBefore[i].ID, docsAfter[i].ID)
		assert.Equal(t, docsBefore[i].DocumentType, docsAfter[i].DocumentType)
		assert.Equal(t, docsBefore[i].AttachmentNumber, docsAfter[i].AttachmentNumber)
		assert.Equal(t, docsBefore[i].Description, docsAfter[i].Description)
	}
}

func TestMergeDocketRejectsBadInput(t *testing.T) {
	m, _ := newTestMerger(t)
	ctx := context.Background()

	_, err := m.MergeDocket(ctx, &report.DocketUpload{})
	assert.ErrorIs(t, err, ErrValidation)

	up := sampleUpload()
	up.Report.CourtID = "nowhere"
	_, err = m.MergeDocket(ctx, up)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeDocketArchivesJSONWithoutRawPage(t *testing.T) {
	arch := &memArchive{}
	m, _ := newTestMerger(t, WithArchiver(arch))

	up := sampleUpload()
	up.RawPage = ""
	up.Appellate = true
	_, err := m.MergeDocket(context.Background(), up)
	require.NoError(t, err)
	require.NotEmpty(t, arch.pages)
	assert.Equal(t, "docket.json", arch.pages[0].filename)
	assert.Equal(t, database.UploadAppellateDocket, arch.pages[0].uploadType)
}

func TestUpdateCaseNames(t *testing.T) {
	const named, incoming = "Real v. Name", "New v. Name"
	unknown := normalize.UnknownCaseTitle
	tests := []struct {
		existing, incoming, want string
	}{
		{"", "", ""},
		{"", unknown, unknown},
		{"", incoming, incoming},
		{unknown, "", unknown},
		{unknown, unknown, unknown},
		{unknown, incoming, incoming},
		{named, "", named},
		{named, unknown, named},
		{named, incoming, incoming},
	}
	for _, tt := range tests {
		d := &database.Docket{CaseName: tt.existing}
		UpdateCaseNames(d, tt.incoming)
		assert.Equal(t, tt.want, d.CaseName, "existing %q incoming %q", tt.existing, tt.incoming)
	}
}

func TestFindDocketPrefersOldest(t *testing.T) {
	m, db := newTestMerger(t)
	core := normalize.DocketNumberCore("3:14-cv-00123")

	// Insert the newer row first so id order and age disagree.
	newer := database.Docket{CourtID: "cand", DocketNumber: "3:14-cv-00123", DocketNumberCore: &core}
	newer.CreatedAt = day(2020, 1, 1)
	older := database.Docket{CourtID: "cand", DocketNumber: "3:14-cv-00123", DocketNumberCore: &core}
	older.CreatedAt = day(2015, 1, 1)
	require.NoError(t, db.Create(&newer).Error)
	require.NoError(t, db.Create(&older).Error)

	d, err := m.FindDocket(context.Background(), DocketKey{CourtID: "cand", DocketNumber: "3:14-cv-00123"})
	require.NoError(t, err)
	assert.Equal(t, older.ID, d.ID)
}

func TestFindDocketUsesComponents(t *testing.T) {
	m, db := newTestMerger(t)
	core := normalize.DocketNumberCore("1:20-cr-00045")
	for _, def := range []string{"1", "2"} {
		require.NoError(t, db.Create(&database.Docket{
			CourtID: "nysd", DocketNumber: "1:20-cr-00045", DocketNumberCore: &core, FederalDefendantNumber: def,
		}).Error)
	}

	d, err := m.FindDocket(context.Background(), DocketKey{
		CourtID: "nysd", DocketNumber: "1:20-cr-00045", FederalDefendantNumber: "2",
	})
	require.NoError(t, err)
	assert.Equal(t, "2", d.FederalDefendantNumber)
}

func TestFindDocketNewWhenNothingMatches(t *testing.T) {
	m, _ := newTestMerger(t)
	d, err := m.FindDocket(context.Background(), DocketKey{CourtID: "cand", PacerCaseID: "1", DocketNumber: "3:99-cv-1"})
	require.NoError(t, err)
	assert.Zero(t, d.ID)
	assert.Equal(t, "1", *d.PacerCaseID)
}

func TestBankruptcyDocketsAreBlocked(t *testing.T) {
	m, db := newTestMerger(t)
	up := &report.DocketUpload{Report: report.DocketReport{
		CourtID:      "canb",
		PacerCaseID:  "55",
		DocketNumber: "23-30001",
		CaseName:     "In re Doe",
		Bankruptcy:   report.Bankruptcy{Chapter: "7", TrusteeStr: "Jane Trustee"},
	}}
	res, err := m.MergeDocket(context.Background(), up)
	require.NoError(t, err)

	var d database.Docket
	require.NoError(t, db.First(&d, res.Docket.ID).Error)
	assert.True(t, d.Blocked)
	require.NotNil(t, d.DateBlocked)
	assert.True(t, d.DateBlocked.Equal(day(2024, 3, 1)))

	var info database.BankruptcyInformation
	require.NoError(t, db.Where("docket_id = ?", d.ID).First(&info).Error)
	assert.Equal(t, "7", info.Chapter)

	// A later merge with blank fields keeps what is stored.
	up.Report.Bankruptcy = report.Bankruptcy{TrusteeStr: "New Trustee"}
	_, err = m.MergeDocket(context.Background(), up)
	require.NoError(t, err)
	require.NoError(t, db.Where("docket_id = ?", d.ID).First(&info).Error)
	assert.Equal(t, "7", info.Chapter)
	assert.Equal(t, "New Trustee", info.TrusteeStr)
	assert.EqualValues(t, 1, count(t, db, &database.BankruptcyInformation{}))
}

func TestProcessCaseQueryReport(t *testing.T) {
	arch := &memArchive{}
	m, db := newTestMerger(t, WithArchiver(arch))
	ctx := context.Background()

	up := &report.CaseQueryUpload{
		CourtID:     "nysd",
		PacerCaseID: "999",
		Report:      report.DocketReport{DocketNumber: "1:20-cv-00001", CaseName: "A v. B", DateFiled: report.NewDate(2020, 1, 2)},
		Text:        "<html>iquery</html>",
	}
	d1, err := m.ProcessCaseQueryReport(ctx, up)
	require.NoError(t, err)
	d2, err := m.ProcessCaseQueryReport(ctx, up)
	require.NoError(t, err)

	assert.Equal(t, d1.ID, d2.ID)
	assert.EqualValues(t, 1, count(t, db, &database.Docket{}))
	assert.Equal(t, "999", *d2.PacerCaseID)

	var stored database.Docket
	require.NoError(t, db.First(&stored, d1.ID).Error)
	assert.Equal(t, "nysd", stored.CourtID)
	assert.Equal(t, "A v. B", stored.CaseName)
	require.NotNil(t, stored.PacerCaseID)
	assert.Equal(t, "999", *stored.PacerCaseID)
	require.Len(t, arch.pages, 2)
	assert.Equal(t, database.UploadCaseQueryPage, arch.pages[0].uploadType)
	assert.Equal(t, "case_report.html", arch.pages[0].filename)

	_, err = m.ProcessCaseQueryReport(ctx, &report.CaseQueryUpload{CourtID: "nysd"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMergeCaseQueryIntoDocket(t *testing.T) {
	m, db := newTestMerger(t)
	ctx := context.Background()
	d := database.Docket{CourtID: "nysd", DocketNumber: "1:20-cv-00001"}
	require.NoError(t, db.Create(&d).Error)

	got, err := m.MergeCaseQueryIntoDocket(ctx, d.ID, &report.DocketReport{CaseName: "A v. B", Cause: "Contract"}, "", []string{"iquery"})
	require.NoError(t, err)
	assert.Equal(t, "A v. B", got.CaseName)
	assert.Equal(t, "Contract", got.Cause)
	assert.EqualValues(t, 1, count(t, db, &database.TaggedObject{}))

	_, err = m.MergeCaseQueryIntoDocket(ctx, d.ID+100, &report.DocketReport{}, "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentMergesOfDistinctCases(t *testing.T) {
	m, db := newTestMerger(t)
	ctx := context.Background()

	const n = 4
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		up := sampleUpload()
		up.Report.PacerCaseID = fmt.Sprintf("27301%d", i)
		up.Report.DocketNumber = fmt.Sprintf("3:14-cv-0012%d-EMC", i)
		for j := range up.Report.DocketEntries {
			e := &up.Report.DocketEntries[j]
			e.PacerDocID = fmt.Sprintf("%s%d", e.PacerDocID, i)
			for k := range e.Attachments {
				e.Attachments[k].PacerDocID = fmt.Sprintf("%s%d", e.Attachments[k].PacerDocID, i)
			}
		}

		wg.Add(1)
		go func(i int, up *report.DocketUpload) {
			defer wg.Done()
			_, errs[i] = m.MergeDocket(ctx, up)
		}(i, up)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "merge %d", i)
	}
	assert.EqualValues(t, n, count(t, db, &database.Docket{}))
	assert.EqualValues(t, 3*n, count(t, db, &database.DocketEntry{}))
	assert.EqualValues(t, 1, count(t, db, &database.AttorneyOrganization{}))
}
