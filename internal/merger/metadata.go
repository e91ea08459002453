package merger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Bankruptcy dockets at or under this many entries are hidden from search.
const bankruptcyPrivacyThreshold = 500

// UpdateCaseNames applies an incoming case name. A real name always wins, the
// unknown-title placeholder only fills a blank, and a blank never
// overwrites.
func UpdateCaseNames(d *database.Docket, incoming string) {
	if incoming == "" {
		return
	}
	if incoming == normalize.UnknownCaseTitle && d.CaseName != "" {
		return
	}
	d.CaseName = incoming
	d.CaseNameShort = normalize.CaseNameShort(incoming)
}

// lookupJudges resolves several judge names concurrently. Blank names are
// skipped and leave a nil id.
func (m *Merger) lookupJudges(ctx context.Context, courtID string, on *time.Time, names ...string) ([]*uint, error) {
	ids := make([]*uint, len(names))
	if courtID == "" {
		return ids, nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		g.Go(func() error {
			id, err := m.judges.Lookup(gctx, name, courtID, on)
			if err != nil {
				return fmt.Errorf("judge %q: %w", name, err)
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ids, nil
}

// updateDocketMetadata merges the docket-level fields of r into d. Fields
// keep their current value unless r has a non-empty one; nature of suit is
// never replaced once set.
func (m *Merger) updateDocketMetadata(ctx context.Context, tx *gorm.DB, d *database.Docket, r *report.DocketReport) error {
	judges, err := m.lookupJudges(ctx, d.CourtID, r.DateFiled.Calendar(), r.AssignedToStr, r.ReferredToStr)
	if err != nil {
		return err
	}

	UpdateCaseNames(d, r.CaseName)
	d.IANeedsUpload = true
	d.DocketNumber = firstNonEmpty(r.DocketNumber, d.DocketNumber)
	if core := normalize.DocketNumberCore(d.DocketNumber); core != "" {
		d.DocketNumberCore = &core
	}
	if d.PacerCaseID == nil && r.PacerCaseID != "" {
		d.PacerCaseID = ptr(r.PacerCaseID)
	}
	d.DateFiled = firstNonNil(r.DateFiled.Calendar(), d.DateFiled)
	d.DateLastFiling = firstNonNil(r.DateLastFiling.Calendar(), d.DateLastFiling)
	d.DateTerminated = firstNonNil(r.DateTerminated.Calendar(), d.DateTerminated)
	d.Cause = firstNonEmpty(r.Cause, d.Cause)
	if d.NatureOfSuit == "" {
		d.NatureOfSuit = r.NatureOfSuit
	}
	d.JuryDemand = firstNonEmpty(r.JuryDemand, d.JuryDemand)
	d.JurisdictionType = firstNonEmpty(r.Jurisdiction, d.JurisdictionType)
	d.MDLStatus = firstNonEmpty(r.MDLStatus, d.MDLStatus)

	d.AssignedToID = firstNonNil(judges[0], d.AssignedToID)
	d.AssignedToStr = firstNonEmpty(r.AssignedToStr, d.AssignedToStr)
	d.ReferredToID = firstNonNil(judges[1], d.ReferredToID)
	d.ReferredToStr = firstNonEmpty(r.ReferredToStr, d.ReferredToStr)

	blocked, dateBlocked, err := m.blockedStatus(tx, d)
	if err != nil {
		return err
	}
	d.Blocked, d.DateBlocked = blocked, dateBlocked

	d.FederalDNOfficeCode = firstNonEmpty(r.FederalDNOfficeCode, d.FederalDNOfficeCode)
	d.FederalDNCaseType = firstNonEmpty(r.FederalDNCaseType, d.FederalDNCaseType)
	d.FederalDNJudgeInitialsAssigned = firstNonEmpty(r.FederalDNJudgeInitialsAssigned, d.FederalDNJudgeInitialsAssigned)
	d.FederalDNJudgeInitialsReferred = firstNonEmpty(r.FederalDNJudgeInitialsReferred, d.FederalDNJudgeInitialsReferred)
	d.FederalDefendantNumber = firstNonEmpty(r.FederalDefendantNumber, d.FederalDefendantNumber)
	return nil
}

// blockedStatus hides small bankruptcy dockets, which tend to name private
// individuals. Anything else keeps its current status.
func (m *Merger) blockedStatus(tx *gorm.DB, d *database.Docket) (bool, *time.Time, error) {
	if !m.courts.IsBankruptcy(d.CourtID) {
		return d.Blocked, d.DateBlocked, nil
	}
	small := true
	if !isNew(d) {
		var count int64
		if err := tx.Model(&database.DocketEntry{}).Where("docket_id = ?", d.ID).Count(&count).Error; err != nil {
			return false, nil, classify(err)
		}
		small = count <= bankruptcyPrivacyThreshold
	}
	if !small {
		return d.Blocked, d.DateBlocked, nil
	}
	if d.Blocked && d.DateBlocked != nil {
		return true, d.DateBlocked, nil
	}
	return true, ptr(m.today()), nil
}

// updateAppellateMetadata merges appellate-only fields. It does nothing
// unless r carries appellate data, and returns the originating court
// satellite (unsaved if new) when r has one.
func (m *Merger) updateAppellateMetadata(ctx context.Context, tx *gorm.DB, d *database.Docket, r *report.DocketReport) (*database.OriginatingCourtInformation, error) {
	if !r.HasAppellateData() {
		return nil, nil
	}

	d.PanelStr = firstNonEmpty(strings.Join(r.Panel, ", "), d.PanelStr)
	d.AppellateFeeStatus = firstNonEmpty(r.FeeStatus, d.AppellateFeeStatus)
	d.AppellateCaseTypeInformation = firstNonEmpty(r.CaseTypeInformation, d.AppellateCaseTypeInformation)
	d.AppealFromStr = firstNonEmpty(r.AppealFrom, d.AppealFromStr)

	og := r.OriginatingCourtInformation
	if og == nil {
		return nil, nil
	}

	if og.CourtID != "" {
		// Upstream sometimes names courts that do not exist.
		if id := m.courts.MapPacerToID(og.CourtID); m.courts.Exists(id) {
			d.AppealFromID = id
		}
	}

	info := &database.OriginatingCourtInformation{}
	if d.OriginatingCourtInformationID != nil {
		existing, err := getOne[database.OriginatingCourtInformation](
			tx.Where("id = ?", *d.OriginatingCourtInformationID))
		switch {
		case err == nil:
			info = existing
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	docketNumber, _ := normalize.Anonymize(firstNonEmpty(og.DocketNumber, info.DocketNumber))
	info.DocketNumber = docketNumber
	info.CourtReporter = firstNonEmpty(og.CourtReporter, info.CourtReporter)
	info.DateDisposed = firstNonNil(og.DateDisposed.Calendar(), info.DateDisposed)
	info.DateFiled = firstNonNil(og.DateFiled.Calendar(), info.DateFiled)
	info.DateJudgment = firstNonNil(og.DateJudgment.Calendar(), info.DateJudgment)
	info.DateJudgmentEOD = firstNonNil(og.DateJudgmentEOD.Calendar(), info.DateJudgmentEOD)
	info.DateFiledNOA = firstNonNil(og.DateFiledNOA.Calendar(), info.DateFiledNOA)
	info.DateReceivedCOA = firstNonNil(og.DateReceivedCOA.Calendar(), info.DateReceivedCOA)
	info.AssignedToStr = firstNonEmpty(og.AssignedTo, info.AssignedToStr)
	info.OrderingJudgeStr = firstNonEmpty(og.OrderingJudge, info.OrderingJudgeStr)

	// Judge lookups need both the lower court and a date to scope them.
	if d.AppealFromID == "" || info.DateFiled == nil {
		return info, nil
	}
	judges, err := m.lookupJudges(ctx, d.AppealFromID, info.DateFiled, og.AssignedTo, og.OrderingJudge)
	if err != nil {
		return nil, err
	}
	info.AssignedToID = firstNonNil(judges[0], info.AssignedToID)
	info.OrderingJudgeID = firstNonNil(judges[1], info.OrderingJudgeID)
	return info, nil
}
