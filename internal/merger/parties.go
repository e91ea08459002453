package merger

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/metrics"
	"github.com/JustJay7/docket-merger/internal/normalize"
	"github.com/JustJay7/docket-merger/internal/report"
	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"
)

// partyInput is a party with its attorney roles parsed.
type partyInput struct {
	report.Party
	attorneys []attorneyInput
}

type attorneyInput struct {
	report.Attorney
	roles []normalize.AttorneyRole
}

// AddPartiesAndAttorneys reconciles the docket's parties, attorneys and roles
// with parties. Entities absent from parties are disassociated from the
// docket, never deleted. An empty list is a no-op, since many reports are
// pulled without party data.
//
// The work runs in one transaction holding the docket lease and is retried
// on lock failures. Each attempt works on its own copy of parties.
func (m *Merger) AddPartiesAndAttorneys(ctx context.Context, d *database.Docket, parties []report.Party) error {
	if len(parties) == 0 {
		return nil
	}

	attempts := m.partyRetry.Attempts
	if attempts == 0 {
		attempts = 1
	}
	try := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		try++
		if try > 1 {
			metrics.Retry("parties")
			m.logger.Info("Retrying party reconciliation", "docketID", d.ID, "attempt", try)
		}
		local := cloneParties(parties)
		err := database.WithTransaction(ctx, m.db, func(tx *gorm.DB) error {
			return m.reconcileParties(tx, d, local)
		})
		if err = classify(err); err != nil && !errors.Is(err, ErrTransient) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(m.partyRetry.Delay)),
		backoff.WithMaxTries(attempts),
	)
	if errors.Is(err, ErrTransient) {
		// The caller's own retry re-drives the whole merge.
		m.logger.Warn("Gave up reconciling parties after lock failures",
			"docketID", d.ID, "attempts", try, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile parties for docket %d: %w", d.ID, err)
	}
	return nil
}

// cloneParties deep copies parties so a retried attempt never sees state
// left behind by a failed one.
func cloneParties(parties []report.Party) []report.Party {
	out := make([]report.Party, len(parties))
	for i, p := range parties {
		out[i] = p
		if p.DateTerminated != nil {
			dt := *p.DateTerminated
			out[i].DateTerminated = &dt
		}
		if p.CriminalData != nil {
			cd := *p.CriminalData
			cd.Counts = append([]report.CriminalCount(nil), p.CriminalData.Counts...)
			cd.Complaints = append([]report.CriminalComplaint(nil), p.CriminalData.Complaints...)
			out[i].CriminalData = &cd
		}
		out[i].Attorneys = make([]report.Attorney, len(p.Attorneys))
		for j, a := range p.Attorneys {
			out[i].Attorneys[j] = a
			out[i].Attorneys[j].Roles = append([]string(nil), a.Roles...)
		}
	}
	return out
}

func parseParties(parties []report.Party) []partyInput {
	out := make([]partyInput, len(parties))
	for i, p := range parties {
		out[i].Party = p
		for _, a := range p.Attorneys {
			out[i].attorneys = append(out[i].attorneys, attorneyInput{
				Attorney: a,
				roles:    normalize.AttorneyRoles(a.Roles),
			})
		}
	}
	return out
}

func (m *Merger) reconcileParties(tx *gorm.DB, d *database.Docket, raw []report.Party) error {
	if err := database.AcquireDocketLease(tx, d.ID); err != nil {
		return err
	}

	parties := parseParties(raw)
	updatedParties := make(map[uint]bool)
	updatedAttorneys := make(map[uint]bool)

	for _, in := range parties {
		p, err := m.findOrCreateParty(tx, d, in.Name)
		if err != nil {
			return err
		}
		updatedParties[p.ID] = true

		pt, err := upsertPartyType(tx, d, p, &in.Party)
		if err != nil {
			return err
		}
		if err := replaceCriminalData(tx, pt, in.CriminalData); err != nil {
			return err
		}

		for _, atty := range in.attorneys {
			id, err := m.addAttorney(tx, atty, p, d)
			if err != nil {
				return err
			}
			updatedAttorneys[id] = true
		}
	}

	return m.disassociateExtraneousEntities(tx, d, parties, updatedParties, updatedAttorneys)
}

// findOrCreateParty matches by exact name among parties already on the
// docket, oldest first.
func (m *Merger) findOrCreateParty(tx *gorm.DB, d *database.Docket, name string) (*database.Party, error) {
	onDocket := tx.Model(&database.PartyType{}).Select("party_id").Where("docket_id = ?", d.ID)
	p, err := earliest[database.Party](tx.Where("name = ? AND id IN (?)", name, onDocket))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	p = &database.Party{Name: name}
	if err := tx.Create(p).Error; err != nil {
		return nil, classify(err)
	}
	metrics.RowsCreated("parties", 1)
	return p, nil
}

// upsertPartyType updates or creates the party's role on the docket. Only
// non-empty incoming values replace stored ones.
func upsertPartyType(tx *gorm.DB, d *database.Docket, p *database.Party, in *report.Party) (*database.PartyType, error) {
	updates := map[string]any{}
	if in.ExtraInfo != "" {
		updates["extra_info"] = in.ExtraInfo
	}
	if dt := in.DateTerminated.Calendar(); dt != nil {
		updates["date_terminated"] = *dt
	}
	if cd := in.CriminalData; cd != nil {
		if cd.HighestOffenseLevelOpening != "" {
			updates["highest_offense_level_opening"] = cd.HighestOffenseLevelOpening
		}
		if cd.HighestOffenseLevelTerminated != "" {
			updates["highest_offense_level_terminated"] = cd.HighestOffenseLevelTerminated
		}
	}

	scope := func() *gorm.DB {
		return tx.Model(&database.PartyType{}).
			Where("docket_id = ? AND party_id = ? AND name = ?", d.ID, p.ID, in.Type)
	}
	pt, err := earliest[database.PartyType](scope())
	switch {
	case err == nil:
		if len(updates) > 0 {
			if err := scope().Updates(updates).Error; err != nil {
				return nil, classify(err)
			}
		}
		return pt, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	pt = &database.PartyType{
		DocketID:       d.ID,
		PartyID:        p.ID,
		Name:           in.Type,
		ExtraInfo:      in.ExtraInfo,
		DateTerminated: in.DateTerminated.Calendar(),
	}
	if cd := in.CriminalData; cd != nil {
		pt.HighestOffenseLevelOpening = cd.HighestOffenseLevelOpening
		pt.HighestOffenseLevelTerminated = cd.HighestOffenseLevelTerminated
	}
	if err := tx.Create(pt).Error; err != nil {
		return nil, classify(err)
	}
	return pt, nil
}

// replaceCriminalData swaps the counts and complaints of pt wholesale. They
// have no identity of their own to match on.
func replaceCriminalData(tx *gorm.DB, pt *database.PartyType, cd *report.CriminalData) error {
	if cd == nil {
		return nil
	}
	if len(cd.Counts) > 0 {
		if err := tx.Where("party_type_id = ?", pt.ID).Delete(&database.CriminalCount{}).Error; err != nil {
			return classify(err)
		}
		counts := make([]database.CriminalCount, len(cd.Counts))
		for i, c := range cd.Counts {
			counts[i] = database.CriminalCount{
				PartyTypeID: pt.ID,
				Name:        c.Name,
				Disposition: c.Disposition,
				Status:      normalize.CriminalCountStatus(c.Status),
			}
		}
		if err := tx.Create(&counts).Error; err != nil {
			return classify(err)
		}
	}
	if len(cd.Complaints) > 0 {
		if err := tx.Where("party_type_id = ?", pt.ID).Delete(&database.CriminalComplaint{}).Error; err != nil {
			return classify(err)
		}
		complaints := make([]database.CriminalComplaint, len(cd.Complaints))
		for i, c := range cd.Complaints {
			complaints[i] = database.CriminalComplaint{
				PartyTypeID: pt.ID,
				Name:        c.Name,
				Disposition: c.Disposition,
			}
		}
		if err := tx.Create(&complaints).Error; err != nil {
			return classify(err)
		}
	}
	return nil
}

// addAttorney finds or creates the attorney, links it to its organization
// and replaces its roles for (party, docket). It returns the attorney id.
func (m *Merger) addAttorney(tx *gorm.DB, in attorneyInput, p *database.Party, d *database.Docket) (uint, error) {
	org, info := normalize.AttorneyContact(in.Contact, in.Name)

	onDocket := tx.Model(&database.Role{}).Select("attorney_id").Where("docket_id = ?", d.ID)
	a, err := earliest[database.Attorney](tx.Where("name = ? AND id IN (?)", in.Name, onDocket))
	switch {
	case errors.Is(err, ErrNotFound):
		a = &database.Attorney{Name: in.Name, ContactRaw: in.Contact}
		if err := tx.Create(a).Error; err != nil {
			return 0, classify(err)
		}
		metrics.RowsCreated("attorneys", 1)
	case err != nil:
		return 0, err
	}

	if in.Contact != "" {
		if org != nil {
			o, err := m.getOrCreateOrganization(tx, org)
			if err != nil {
				return 0, err
			}
			assoc := database.AttorneyOrganizationAssociation{
				AttorneyID:             a.ID,
				AttorneyOrganizationID: o.ID,
				DocketID:               d.ID,
			}
			if err := tx.Where(&assoc).FirstOrCreate(&assoc).Error; err != nil {
				return 0, classify(err)
			}
		}
		a.ContactRaw = in.Contact
		a.Email = info.Email
		a.Phone = info.Phone
		a.Fax = info.Fax
		if err := tx.Save(a).Error; err != nil {
			return 0, classify(err)
		}
	}

	roles := in.roles
	if len(roles) == 0 {
		roles = []normalize.AttorneyRole{{Role: database.RoleUnknown}}
	}
	if err := tx.Where("attorney_id = ? AND party_id = ? AND docket_id = ?", a.ID, p.ID, d.ID).
		Delete(&database.Role{}).Error; err != nil {
		return 0, classify(err)
	}
	rows := make([]database.Role, len(roles))
	for i, r := range roles {
		rows[i] = database.Role{
			AttorneyID: a.ID,
			PartyID:    p.ID,
			DocketID:   d.ID,
			Role:       r.Role,
			RoleRaw:    r.RoleRaw,
			DateAction: r.DateAction,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, classify(err)
	}
	return a.ID, nil
}

// getOrCreateOrganization looks an organization up by lookup key, creating
// it if missing. A concurrent creator wins the unique index race, in which
// case the lookup is repeated once.
func (m *Merger) getOrCreateOrganization(tx *gorm.DB, info *normalize.OrganizationInfo) (*database.AttorneyOrganization, error) {
	byKey := func() (*database.AttorneyOrganization, error) {
		return getOne[database.AttorneyOrganization](tx.Where("lookup_key = ?", info.LookupKey))
	}
	org, err := byKey()
	if !errors.Is(err, ErrNotFound) {
		return org, err
	}

	org = &database.AttorneyOrganization{
		LookupKey: info.LookupKey,
		Name:      info.Name,
		Address1:  info.Address1,
		Address2:  info.Address2,
		City:      info.City,
		State:     info.State,
		ZipCode:   info.ZipCode,
	}
	// The savepoint keeps a failed insert from aborting the outer
	// transaction on PostgreSQL.
	err = tx.Transaction(func(sp *gorm.DB) error { return sp.Create(org).Error })
	if err == nil {
		return org, nil
	}
	if !database.IsDuplicateKey(err) {
		return nil, classify(err)
	}
	m.logger.Debug("Organization created concurrently, reloading", "lookupKey", info.LookupKey)
	org, err = byKey()
	if err != nil {
		return nil, fmt.Errorf("%w: organization %q: %w", ErrConflict, info.LookupKey, err)
	}
	return org, nil
}

// reportHasTerminatedEntities reports whether the scrape was run with
// terminated parties included, judged by any termination date or
// termination role in it.
func reportHasTerminatedEntities(parties []partyInput) bool {
	for _, p := range parties {
		if p.DateTerminated != nil && !p.DateTerminated.IsZero() {
			return true
		}
		for _, a := range p.attorneys {
			for _, r := range a.roles {
				if r.Role.IsTermination() {
					return true
				}
			}
		}
	}
	return false
}

// terminatedEntities returns the ids of parties and attorneys the docket
// records as terminated.
func terminatedEntities(tx *gorm.DB, d *database.Docket) (parties, attorneys []uint, err error) {
	if err = tx.Model(&database.PartyType{}).
		Where("docket_id = ? AND date_terminated IS NOT NULL", d.ID).
		Distinct().Pluck("party_id", &parties).Error; err != nil {
		return nil, nil, classify(err)
	}
	if err = tx.Model(&database.Role{}).
		Where("docket_id = ? AND role IN ?", d.ID, []database.RoleKind{database.RoleTerminated, database.RoleSelfTerminated}).
		Distinct().Pluck("attorney_id", &attorneys).Error; err != nil {
		return nil, nil, classify(err)
	}
	return parties, attorneys, nil
}

// disassociateExtraneousEntities removes the docket's party types and roles
// for entities this scrape did not touch. When the scrape evidently left out
// terminated entities, those on record are kept, along with every role held
// for a terminated party.
func (m *Merger) disassociateExtraneousEntities(tx *gorm.DB, d *database.Docket, parties []partyInput, keepParties, keepAttorneys map[uint]bool) error {
	var terminatedParties []uint
	if !reportHasTerminatedEntities(parties) {
		tp, ta, err := terminatedEntities(tx, d)
		if err != nil {
			return err
		}
		for _, id := range tp {
			keepParties[id] = true
		}
		for _, id := range ta {
			keepAttorneys[id] = true
		}
		terminatedParties = tp
	}

	ptQuery := tx.Model(&database.PartyType{}).Where("docket_id = ?", d.ID)
	if ids := setKeys(keepParties); len(ids) > 0 {
		ptQuery = ptQuery.Where("party_id NOT IN ?", ids)
	}
	var staleTypes []uint
	if err := ptQuery.Pluck("id", &staleTypes).Error; err != nil {
		return classify(err)
	}
	if len(staleTypes) > 0 {
		for _, model := range []any{&database.CriminalCount{}, &database.CriminalComplaint{}} {
			if err := tx.Where("party_type_id IN ?", staleTypes).Delete(model).Error; err != nil {
				return classify(err)
			}
		}
		if err := tx.Where("id IN ?", staleTypes).Delete(&database.PartyType{}).Error; err != nil {
			return classify(err)
		}
	}

	roleQuery := tx.Where("docket_id = ?", d.ID)
	if ids := setKeys(keepAttorneys); len(ids) > 0 {
		roleQuery = roleQuery.Where("attorney_id NOT IN ?", ids)
	}
	if len(terminatedParties) > 0 {
		roleQuery = roleQuery.Where("party_id NOT IN ?", terminatedParties)
	}
	res := roleQuery.Delete(&database.Role{})
	if res.Error != nil {
		return classify(res.Error)
	}

	if len(staleTypes) > 0 || res.RowsAffected > 0 {
		m.logger.Info("Disassociated extraneous entities",
			"docketID", d.ID,
			"partyTypes", len(staleTypes),
			"roles", res.RowsAffected)
	}
	return nil
}

func setKeys(s map[uint]bool) []uint {
	out := make([]uint, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	return out
}
