package merger

import (
	"context"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"gorm.io/gorm"
)

// DocketKey is what a scrape tells us about which docket it describes.
type DocketKey struct {
	CourtID      string
	PacerCaseID  string
	DocketNumber string

	// Optional docket number components used to tell apart dockets that
	// share a core number, such as co-defendants in one criminal case.
	FederalDefendantNumber         string
	FederalDNJudgeInitialsAssigned string
	FederalDNJudgeInitialsReferred string
}

type lookupTier struct {
	name string
	// confirm re-checks a core-number match against the raw number and
	// components before accepting it.
	confirm bool
	scope   func(*gorm.DB) *gorm.DB
}

func (k DocketKey) tiers() []lookupTier {
	core := normalize.DocketNumberCore(k.DocketNumber)
	var tiers []lookupTier

	if k.PacerCaseID != "" {
		if core != "" {
			tiers = append(tiers,
				lookupTier{name: "case id and core", scope: func(q *gorm.DB) *gorm.DB {
					return q.Where("pacer_case_id = ? AND docket_number_core = ?", k.PacerCaseID, core)
				}},
				// Appellate feeds often omit the case id, so a docket created from
				// one of them can only be found by its core number.
				lookupTier{name: "core without case id", confirm: true, scope: func(q *gorm.DB) *gorm.DB {
					return q.Where("pacer_case_id IS NULL AND docket_number_core = ?", core)
				}},
			)
		}
		tiers = append(tiers, lookupTier{name: "case id", scope: func(q *gorm.DB) *gorm.DB {
			return q.Where("pacer_case_id = ?", k.PacerCaseID)
		}})
	}

	switch {
	case core != "" && k.PacerCaseID == "":
		tiers = append(tiers,
			lookupTier{name: "core without case id", confirm: true, scope: func(q *gorm.DB) *gorm.DB {
				return q.Where("pacer_case_id IS NULL AND docket_number_core = ?", core)
			}},
			lookupTier{name: "core", confirm: true, scope: func(q *gorm.DB) *gorm.DB {
				return q.Where("docket_number_core = ?", core)
			}},
		)
	case k.DocketNumber != "" && k.PacerCaseID == "":
		tiers = append(tiers, lookupTier{name: "raw number", scope: func(q *gorm.DB) *gorm.DB {
			return q.Where("pacer_case_id IS NULL AND docket_number = ?", k.DocketNumber)
		}})
	}
	return tiers
}

// FindDocket resolves key to one existing docket using lookups of decreasing
// specificity. When nothing matches it returns a new, unsaved docket (ID 0)
// for the court and case id.
func (m *Merger) FindDocket(ctx context.Context, key DocketKey) (*database.Docket, error) {
	return m.findDocket(m.db.WithContext(ctx), key)
}

func (m *Merger) findDocket(tx *gorm.DB, key DocketKey) (*database.Docket, error) {
	for _, tier := range key.tiers() {
		var matches []database.Docket
		err := tier.scope(tx.Model(&database.Docket{}).Where("court_id = ?", key.CourtID)).
			Order(oldestFirst).
			Find(&matches).Error
		if err != nil {
			return nil, classify(err)
		}

		var d *database.Docket
		switch {
		case len(matches) == 0:
			continue
		case len(matches) == 1:
			d = &matches[0]
			if tier.confirm && !confirmCoreMatch(d, key, true) {
				d = nil
			}
		default:
			if narrowed := narrowByComponents(matches, key); len(narrowed) == 1 {
				d = &narrowed[0]
			} else {
				// Several candidates and nothing to tell them apart: the oldest
				// is the one earlier merges have been landing on.
				d = &matches[0]
				m.logger.Info("Multiple dockets matched, using oldest",
					"court", key.CourtID,
					"docketNumber", key.DocketNumber,
					"tier", tier.name,
					"matches", len(matches),
					"docketID", d.ID)
				if tier.confirm && !confirmCoreMatch(d, key, false) {
					d = nil
				}
			}
		}
		if d != nil {
			return d, nil
		}
	}

	d := &database.Docket{
		CourtID: key.CourtID,
		Source:  database.SourceRECAP,
	}
	if key.PacerCaseID != "" {
		d.PacerCaseID = ptr(key.PacerCaseID)
	}
	return d, nil
}

// confirmCoreMatch checks that a docket found by core number really has the
// incoming docket number, and that no docket number component present on
// both sides disagrees.
func confirmCoreMatch(d *database.Docket, key DocketKey, checkComponents bool) bool {
	if normalize.CleanDocketNumber(d.DocketNumber) != normalize.CleanDocketNumber(key.DocketNumber) {
		return false
	}
	if !checkComponents {
		return true
	}
	return componentsAgree(key.FederalDefendantNumber, d.FederalDefendantNumber) &&
		componentsAgree(key.FederalDNJudgeInitialsAssigned, d.FederalDNJudgeInitialsAssigned) &&
		componentsAgree(key.FederalDNJudgeInitialsReferred, d.FederalDNJudgeInitialsReferred)
}

func componentsAgree(incoming, existing string) bool {
	return incoming == "" || existing == "" || incoming == existing
}

// narrowByComponents keeps the dockets equal to every component the key
// carries. Dockets keep their oldest-first order.
func narrowByComponents(ds []database.Docket, key DocketKey) []database.Docket {
	var out []database.Docket
	for _, d := range ds {
		if key.FederalDefendantNumber != "" && d.FederalDefendantNumber != key.FederalDefendantNumber {
			continue
		}
		if key.FederalDNJudgeInitialsAssigned != "" && d.FederalDNJudgeInitialsAssigned != key.FederalDNJudgeInitialsAssigned {
			continue
		}
		if key.FederalDNJudgeInitialsReferred != "" && d.FederalDNJudgeInitialsReferred != key.FederalDNJudgeInitialsReferred {
			continue
		}
		out = append(out, d)
	}
	return out
}

// isNew reports whether d has not been saved yet.
func isNew(d *database.Docket) bool { return d.ID == 0 }
