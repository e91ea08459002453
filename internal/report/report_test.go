package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     time.Time
		hasClock bool
		isZero   bool
		wantErr  bool
	}{
		{name: "iso date", input: `"2014-01-02"`, want: time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "us date", input: `"01/02/2014"`, want: time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "short us date", input: `"1/2/2014"`, want: time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", input: `"2014-01-02T15:04:05-08:00"`, want: time.Date(2014, 1, 2, 23, 4, 5, 0, time.UTC), hasClock: true},
		{name: "local date time", input: `"2014-01-02 15:04:05"`, want: time.Date(2014, 1, 2, 15, 4, 5, 0, time.UTC), hasClock: true},
		{name: "minutes only", input: `"2014-01-02T15:04"`, want: time.Date(2014, 1, 2, 15, 4, 0, 0, time.UTC), hasClock: true},
		{name: "null", input: `null`, isZero: true},
		{name: "empty", input: `""`, isZero: true},
		{name: "garbage", input: `"next tuesday"`, wantErr: true},
		{name: "number", input: `20140102`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.isZero {
				assert.True(t, d.IsZero())
				assert.Nil(t, d.Calendar())
				return
			}
			assert.True(t, tt.want.Equal(d.Time), "got %s", d.Time)
			assert.Equal(t, tt.hasClock, d.HasClock)
		})
	}
}

func TestDateMarshalKeepsClock(t *testing.T) {
	b, err := json.Marshal(NewDate(2014, 1, 2))
	require.NoError(t, err)
	assert.JSONEq(t, `"2014-01-02"`, string(b))

	b, err = json.Marshal(NewDateTime(time.Date(2014, 1, 2, 15, 4, 5, 0, time.UTC)))
	require.NoError(t, err)
	assert.JSONEq(t, `"2014-01-02T15:04:05Z"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.HasClock)
}

func TestDateCalendar(t *testing.T) {
	loc := time.FixedZone("PST", -8*3600)
	d := NewDateTime(time.Date(2014, 1, 2, 23, 30, 0, 0, loc))
	assert.Equal(t, time.Date(2014, 1, 2, 0, 0, 0, 0, time.UTC), *d.Calendar())

	var unset *Date
	assert.Nil(t, unset.Calendar())
}

func TestOptionalInt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		present bool
		value   *int
	}{
		{name: "absent", input: `{}`},
		{name: "null", input: `{"page_count": null}`, present: true},
		{name: "zero", input: `{"page_count": 0}`, present: true, value: intPtr(0)},
		{name: "value", input: `{"page_count": 12}`, present: true, value: intPtr(12)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Attachment
			require.NoError(t, json.Unmarshal([]byte(tt.input), &a))
			assert.Equal(t, tt.present, a.PageCount.Present)
			assert.Equal(t, tt.value, a.PageCount.Value)
		})
	}

	var a Attachment
	assert.Error(t, json.Unmarshal([]byte(`{"page_count": "many"}`), &a))
}

func intPtr(v int) *int { return &v }

func TestDocketReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		report  DocketReport
		wantErr string
	}{
		{name: "minimal", report: DocketReport{CourtID: "cand"}},
		{name: "missing court", report: DocketReport{DocketNumber: "1:20-cv-1"}, wantErr: "CourtID"},
		{
			name:    "unnamed party",
			report:  DocketReport{CourtID: "cand", Parties: []Party{{Type: "Plaintiff"}}},
			wantErr: "Parties[0].Name",
		},
		{
			name:    "unnamed attorney",
			report:  DocketReport{CourtID: "cand", Parties: []Party{{Name: "A", Attorneys: []Attorney{{}}}}},
			wantErr: "Attorneys[0].Name",
		},
		{
			name:    "claim without number",
			report:  DocketReport{CourtID: "canb", Claims: []Claim{{}}},
			wantErr: "ClaimNumber",
		},
		{
			name:   "claim history type",
			report: DocketReport{CourtID: "canb", Claims: []Claim{{ClaimNumber: "1", History: []ClaimHistory{{Type: ClaimHistoryDocketEntry}, {}}}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.report.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCaseQueryUploadValidate(t *testing.T) {
	tests := []struct {
		name    string
		upload  CaseQueryUpload
		wantErr string
	}{
		{
			name:   "ids only at the top level",
			upload: CaseQueryUpload{CourtID: "nysd", PacerCaseID: "999", Report: DocketReport{DocketNumber: "1:20-cv-1", CaseName: "A v. B"}},
		},
		{name: "missing case id", upload: CaseQueryUpload{CourtID: "nysd"}, wantErr: "PacerCaseID"},
		{name: "missing court", upload: CaseQueryUpload{PacerCaseID: "999"}, wantErr: "CourtID"},
		{
			name:    "nested report still checked",
			upload:  CaseQueryUpload{CourtID: "nysd", PacerCaseID: "999", Report: DocketReport{Parties: []Party{{}}}},
			wantErr: "Name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.upload.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCaseQueryUploadDocketReport(t *testing.T) {
	up := CaseQueryUpload{CourtID: "nysd", PacerCaseID: "999", Report: DocketReport{CourtID: "other", CaseName: "A v. B"}}
	r := up.DocketReport()
	assert.Equal(t, "nysd", r.CourtID)
	assert.Equal(t, "999", r.PacerCaseID)
	assert.Equal(t, "A v. B", r.CaseName)
	assert.Equal(t, "other", up.Report.CourtID)
}

func TestAttachmentPageUploadValidate(t *testing.T) {
	assert.NoError(t, (&AttachmentPageUpload{CourtID: "cand", PacerDocID: "035012345678"}).Validate())
	assert.ErrorContains(t, (&AttachmentPageUpload{CourtID: "cand"}).Validate(), "PacerDocID")
	assert.ErrorContains(t, (&AttachmentPageUpload{PacerDocID: "1"}).Validate(), "CourtID")
}
