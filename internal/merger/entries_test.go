package merger

import (
	"context"
	"testing"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func calendar(d *report.Date) time.Time { return *d.Calendar() }

func TestAssignSequenceNumbers(t *testing.T) {
	d1, d2 := report.NewDate(2014, 1, 2), report.NewDate(2014, 1, 3)
	ascending := []report.DocketEntry{
		{DateFiled: d1, DocumentNumber: "1"},
		{DateFiled: d1, DocumentNumber: "2"},
		{DateFiled: d2, DocumentNumber: "3"},
	}
	descending := []report.DocketEntry{ascending[2], ascending[1], ascending[0]}

	for name, in := range map[string][]report.DocketEntry{"ascending": ascending, "descending": descending} {
		t.Run(name, func(t *testing.T) {
			out := AssignSequenceNumbers(in, calendar)
			require.Len(t, out, 3)
			assert.Equal(t, "1", out[0].DocumentNumber)
			assert.Equal(t, "2014-01-02.001", out[0].RecapSequenceNumber)
			assert.Equal(t, "2014-01-02.002", out[1].RecapSequenceNumber)
			assert.Equal(t, "2014-01-03.001", out[2].RecapSequenceNumber)
			assert.Empty(t, in[0].RecapSequenceNumber, "input is not modified")
		})
	}
}

func TestAssignSequenceNumbersUnnumberedRun(t *testing.T) {
	d := report.NewDate(2015, 6, 1)
	out := AssignSequenceNumbers([]report.DocketEntry{
		{DateFiled: d}, {DateFiled: d, DocumentNumber: "7"}, {DateFiled: d},
	}, calendar)
	assert.Equal(t, "2015-06-01.003", out[2].RecapSequenceNumber)
}

func TestSequenceNumberUsesCourtDate(t *testing.T) {
	m, _ := newTestMerger(t)
	// 02:00 UTC on the 3rd is still the 2nd in California.
	filed := report.NewDateTime(time.Date(2014, 1, 3, 2, 0, 0, 0, time.UTC))
	out := AssignSequenceNumbers([]report.DocketEntry{{DateFiled: filed, DocumentNumber: "1"}}, m.localDateFunc("cand"))
	assert.Equal(t, "2014-01-02.001", out[0].RecapSequenceNumber)
}

func newDocket(t *testing.T, db *gorm.DB, courtID, caseID string) *database.Docket {
	t.Helper()
	d := &database.Docket{CourtID: courtID, DocketNumber: "1:14-cv-00001"}
	if caseID != "" {
		d.PacerCaseID = &caseID
	}
	require.NoError(t, db.Create(d).Error)
	return d
}

func TestAddDocketEntriesSetsTimeFiled(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	filed := report.NewDateTime(time.Date(2014, 1, 3, 2, 30, 0, 0, time.UTC))

	_, err := m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DateFiled: filed, DocumentNumber: "1", Description: "Complaint", PacerDocID: "1"},
	}, EntryOptions{})
	require.NoError(t, err)

	var e database.DocketEntry
	require.NoError(t, db.First(&e).Error)
	assert.True(t, e.DateFiled.Equal(day(2014, 1, 2)))
	require.NotNil(t, e.TimeFiled)
	assert.Equal(t, "18:30:00", *e.TimeFiled)

	// A date-only rescrape on another day clears the stale time.
	_, err = m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 1, 4), DocumentNumber: "1", PacerDocID: "1"},
	}, EntryOptions{})
	require.NoError(t, err)
	require.NoError(t, db.First(&e).Error)
	assert.Nil(t, e.TimeFiled)
	assert.Equal(t, "Complaint", e.Description)
}

func TestAddDocketEntriesSkipsUndated(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	res, err := m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DocumentNumber: "1", Description: "no date"},
	}, EntryOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Entries)
	assert.EqualValues(t, 0, count(t, db, &database.DocketEntry{}))
}

func TestNumberedEntryAdoptsRowsWithoutSequence(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	n := int64(5)
	old := database.DocketEntry{DocketID: d.ID, EntryNumber: &n}
	old.CreatedAt = day(2015, 1, 1)
	recent := database.DocketEntry{DocketID: d.ID, EntryNumber: &n}
	recent.CreatedAt = day(2016, 1, 1)
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	res, err := m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "5", PacerSeqNo: intp(10), Description: "Motion"},
	}, EntryOptions{})
	require.NoError(t, err)
	assert.False(t, res.ContentUpdated)

	var entries []database.DocketEntry
	require.NoError(t, db.Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, recent.ID, entries[0].ID)
	assert.Equal(t, 10, *entries[0].PacerSequenceNumber)
}

func TestNumberedEntriesSplitBySequence(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	_, err := m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "5", PacerSeqNo: intp(10), Description: "Motion"},
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "5", PacerSeqNo: intp(11), Description: "Errata"},
	}, EntryOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count(t, db, &database.DocketEntry{}))
}

func TestUnnumberedEntriesMatchOnDescription(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	entries := []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), Description: "Minute Entry for proceedings held before Judge Chen"},
		{DateFiled: report.NewDate(2014, 2, 1), Description: "Set Deadlines/Hearings"},
	}
	ctx := context.Background()
	_, err := m.AddDocketEntries(ctx, d, entries, EntryOptions{})
	require.NoError(t, err)
	_, err = m.AddDocketEntries(ctx, d, entries, EntryOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count(t, db, &database.DocketEntry{}))
}

func TestUnnumberedDuplicatesMergeToEarliest(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	filed := day(2014, 2, 1)
	var rows []database.DocketEntry
	for i, desc := range []string{"Order", "Order", "Order"} {
		e := database.DocketEntry{DocketID: d.ID, DateFiled: &filed, Description: desc}
		e.CreatedAt = day(2015, 1, 1+i)
		require.NoError(t, db.Create(&e).Error)
		rows = append(rows, e)
	}

	_, err := m.AddDocketEntries(context.Background(), d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), Description: "Order"},
	}, EntryOptions{})
	require.NoError(t, err)

	var left []database.DocketEntry
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, rows[0].ID, left[0].ID)
}

func TestDoNotUpdateExistingStops(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	ctx := context.Background()
	_, err := m.AddDocketEntries(ctx, d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 3), DocumentNumber: "3", Description: "Answer"},
	}, EntryOptions{})
	require.NoError(t, err)

	res, err := m.AddDocketEntries(ctx, d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "1", Description: "Complaint"},
		{DateFiled: report.NewDate(2014, 2, 2), DocumentNumber: "2", Description: "Summons"},
		{DateFiled: report.NewDate(2014, 2, 3), DocumentNumber: "3", Description: "Changed"},
		{DateFiled: report.NewDate(2014, 2, 4), DocumentNumber: "4", Description: "Reply"},
	}, EntryOptions{DoNotUpdateExisting: true})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 2)

	var nums []int64
	require.NoError(t, db.Model(&database.DocketEntry{}).Order("entry_number").Pluck("entry_number", &nums).Error)
	assert.Equal(t, []int64{1, 2, 3}, nums)
	var third database.DocketEntry
	require.NoError(t, db.Where("entry_number = ?", 3).First(&third).Error)
	assert.Equal(t, "Answer", third.Description)
}

func TestShortDescriptionBackfillsMain(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	ctx := context.Background()
	_, err := m.AddDocketEntries(ctx, d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "8", PacerDocID: "80", Description: "Motion"},
	}, EntryOptions{})
	require.NoError(t, err)

	_, err = m.AddDocketEntries(ctx, d, []report.DocketEntry{
		{DateFiled: report.NewDate(2014, 2, 1), DocumentNumber: "8", PacerDocID: "81", AttachmentNumber: intp(1),
			ShortDescription: "Proposed Order"},
	}, EntryOptions{})
	require.NoError(t, err)

	var main database.Document
	require.NoError(t, db.Where("pacer_doc_id = ?", "80").First(&main).Error)
	assert.Equal(t, "Proposed Order", main.Description)

	var att database.Document
	require.NoError(t, db.Where("pacer_doc_id = ?", "81").First(&att).Error)
	assert.Equal(t, database.DocumentAttachment, att.DocumentType)
	assert.Empty(t, att.Description)
}

func TestDuplicateCleanupKeepsAvailableCopy(t *testing.T) {
	for available := 0; available < 3; available++ {
		m, db := newTestMerger(t)
		d := newDocket(t, db, "cand", "1")
		e := database.DocketEntry{DocketID: d.ID}
		require.NoError(t, db.Create(&e).Error)

		var keep uint
		for i := 0; i < 3; i++ {
			doc := database.Document{DocketEntryID: e.ID, DocumentType: database.DocumentMain, PacerDocID: "X"}
			doc.CreatedAt = day(2020, 1, 1+i)
			if i == available {
				doc.IsAvailable = true
				doc.FilepathLocal = "recap/x.pdf"
			}
			require.NoError(t, db.Create(&doc).Error)
			if i == available {
				keep = doc.ID
			}
		}

		removed, err := m.CleanDuplicateAttachmentEntries(context.Background(), e.ID, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		var left []database.Document
		require.NoError(t, db.Find(&left).Error)
		require.Len(t, left, 1, "available copy at %d", available)
		assert.Equal(t, keep, left[0].ID)
	}
}

func TestDuplicateCleanupKeepsLatestAndConverges(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	e := database.DocketEntry{DocketID: d.ID}
	require.NoError(t, db.Create(&e).Error)
	var last uint
	for i := 0; i < 3; i++ {
		doc := database.Document{DocketEntryID: e.ID, DocumentType: database.DocumentMain, PacerDocID: "X"}
		doc.CreatedAt = day(2020, 1, 1+i)
		require.NoError(t, db.Create(&doc).Error)
		last = doc.ID
	}

	ctx := context.Background()
	_, err := m.CleanDuplicateAttachmentEntries(ctx, e.ID, nil)
	require.NoError(t, err)
	removed, err := m.CleanDuplicateAttachmentEntries(ctx, e.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, removed)

	var left []database.Document
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, last, left[0].ID)
}

func TestDuplicateCleanupUsesParsedAttachmentNumbers(t *testing.T) {
	m, db := newTestMerger(t)
	d := newDocket(t, db, "cand", "1")
	e := database.DocketEntry{DocketID: d.ID}
	require.NoError(t, db.Create(&e).Error)
	wrong := database.Document{DocketEntryID: e.ID, DocumentType: database.DocumentAttachment, AttachmentNumber: intp(1), PacerDocID: "X"}
	right := database.Document{DocketEntryID: e.ID, DocumentType: database.DocumentAttachment, AttachmentNumber: intp(2), PacerDocID: "X"}
	require.NoError(t, db.Create(&right).Error)
	require.NoError(t, db.Create(&wrong).Error)

	_, err := m.CleanDuplicateAttachmentEntries(context.Background(), e.ID, []report.Attachment{
		{AttachmentNumber: intp(2), PacerDocID: "X"},
	})
	require.NoError(t, err)

	var left []database.Document
	require.NoError(t, db.Find(&left).Error)
	require.Len(t, left, 1)
	assert.Equal(t, right.ID, left[0].ID)
}
