package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/JustJay7/docket-merger/internal/database"
)

// AttorneyRole is a parsed attorney role string.
type AttorneyRole struct {
	Role       database.RoleKind
	DateAction *time.Time
	RoleRaw    string
}

var roleLookup = map[string]database.RoleKind{
	"attorney to be noticed":   database.RoleAttorneyToBeNoticed,
	"lead attorney":            database.RoleAttorneyLead,
	"attorney in sealed group": database.RoleAttorneyInSealedGroup,
	"pro hac vice":             database.RoleProHacVice,
	"suspended":                database.RoleSuspended,
	"inactive":                 database.RoleInactive,
	"disbarred":                database.RoleDisbarred,
}

var roleDateRe = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`)

// ParseAttorneyRole turns a free-text role such as "TERMINATED: 03/12/2013"
// into a role kind and optional action date. Unrecognised roles map to
// RoleUnknown.
func ParseAttorneyRole(raw string) AttorneyRole {
	role := AttorneyRole{Role: database.RoleUnknown, RoleRaw: raw}
	s := strings.ToLower(CollapseSpaces(raw))
	s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")

	if kind, ok := roleLookup[s]; ok {
		role.Role = kind
		return role
	}

	switch {
	case strings.HasPrefix(s, "self- terminated"), strings.HasPrefix(s, "self-terminated"), strings.HasPrefix(s, "self terminated"):
		role.Role = database.RoleSelfTerminated
	case strings.HasPrefix(s, "terminated"):
		role.Role = database.RoleTerminated
	default:
		return role
	}

	if m := roleDateRe.FindString(s); m != "" {
		if t, err := time.Parse("1/2/2006", m); err == nil {
			role.DateAction = &t
		}
	}
	return role
}

// AttorneyRoles parses every raw role and drops exact (role, date) repeats,
// keeping first-seen order.
func AttorneyRoles(raw []string) []AttorneyRole {
	roles := make([]AttorneyRole, 0, len(raw))
	type key struct {
		role database.RoleKind
		date time.Time
	}
	seen := make(map[key]bool, len(raw))
	for _, r := range raw {
		parsed := ParseAttorneyRole(r)
		k := key{role: parsed.Role}
		if parsed.DateAction != nil {
			k.date = *parsed.DateAction
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		roles = append(roles, parsed)
	}
	return roles
}

// OrganizationInfo is the firm part of an attorney contact block.
type OrganizationInfo struct {
	Name      string
	Address1  string
	Address2  string
	City      string
	State     string
	ZipCode   string
	LookupKey string
}

// AttorneyInfo is the personal part of an attorney contact block.
type AttorneyInfo struct {
	Email string
	Phone string
	Fax   string
}

var (
	emailLabelRe = regexp.MustCompile(`(?i)^e-?mail:\s*`)
	emailRe      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)
	faxRe        = regexp.MustCompile(`(?i)^fax:?\s*`)
	phoneRe      = regexp.MustCompile(`^(?:(?i)phone:?\s*)?\+?1?[\s.-]?\(?(\d{3})\)?[\s.-]?(\d{3})[\s.-]?(\d{4})(?:\s*(?:x|ext\.?)\s*\d+)?$`)
	cityLineRe   = regexp.MustCompile(`^(.+?),?\s+([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	proSeRe      = regexp.MustCompile(`(?i)pro se`)
	digitRe      = regexp.MustCompile(`\d`)
)

// AttorneyContact splits a scraped contact block into organisation and
// attorney details. The organisation is nil when no address could be parsed.
func AttorneyContact(contact, fallbackName string) (*OrganizationInfo, AttorneyInfo) {
	var atty AttorneyInfo
	if strings.TrimSpace(contact) == "" {
		return nil, atty
	}

	var addressLines []string
	for _, line := range strings.Split(contact, "\n") {
		line = proSeRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(emailLabelRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		if emailRe.MatchString(line) {
			atty.Email = line
			continue
		}
		if faxRe.MatchString(line) {
			if m := phoneRe.FindStringSubmatch(strings.TrimSpace(faxRe.ReplaceAllString(line, ""))); m != nil {
				atty.Fax = formatPhone(m)
			}
			continue
		}
		if m := phoneRe.FindStringSubmatch(line); m != nil {
			atty.Phone = formatPhone(m)
			continue
		}
		addressLines = append(addressLines, CollapseSpaces(line))
	}

	if len(addressLines) == 0 {
		return nil, atty
	}

	cityIdx := -1
	var city, state, zip string
	for i := len(addressLines) - 1; i >= 0; i-- {
		if m := cityLineRe.FindStringSubmatch(addressLines[i]); m != nil {
			cityIdx = i
			city, state, zip = m[1], m[2], m[3]
			break
		}
	}
	if cityIdx < 0 {
		return nil, atty
	}

	org := &OrganizationInfo{City: city, State: state, ZipCode: zip}
	street := addressLines[:cityIdx]
	if len(street) > 0 && !digitRe.MatchString(street[0]) && !strings.EqualFold(street[0], fallbackName) {
		org.Name = street[0]
		street = street[1:]
	}
	if len(street) > 0 {
		org.Address1 = street[0]
	}
	if len(street) > 1 {
		org.Address2 = strings.Join(street[1:], ", ")
	}
	org.LookupKey = LookupKey(org.Name, org.Address1, org.Address2, org.City, org.State, org.ZipCode)
	return org, atty
}

func formatPhone(m []string) string {
	return "(" + m[1] + ") " + m[2] + "-" + m[3]
}

// CriminalCountStatus maps a scraped count status onto the stored enum.
func CriminalCountStatus(status string) int {
	if strings.Contains(strings.ToLower(status), "terminated") {
		return database.CriminalCountTerminated
	}
	return database.CriminalCountPending
}
