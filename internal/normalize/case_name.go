package normalize

import (
	"strings"
)

// UnknownCaseTitle is the placeholder upstream systems use when they do not
// know a case's name.
const UnknownCaseTitle = "Unknown Case Title"

// Parties too generic to identify a case by.
var genericParties = map[string]bool{
	"united states":            true,
	"united states of america": true,
	"usa":                      true,
	"us":                       true,
	"u.s.":                     true,
	"people":                   true,
	"state":                    true,
	"commonwealth":             true,
	"the people":               true,
}

const maxShortNameWords = 3

// CaseNameShort derives a short citation name from a full case name. It
// returns "" when no reasonable short name exists.
func CaseNameShort(caseName string) string {
	name := CollapseSpaces(caseName)
	if name == "" || name == UnknownCaseTitle {
		return ""
	}

	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "in re ") || strings.HasPrefix(lower, "in the matter of ") {
		return ""
	}

	sides := splitVersus(name)
	if sides == nil {
		if wordCount(name) <= maxShortNameWords {
			return name
		}
		return ""
	}

	for _, side := range sides {
		candidate := firstParty(side)
		key := strings.ToLower(strings.TrimSuffix(candidate, "."))
		if candidate == "" || genericParties[key] || genericParties[strings.ToLower(candidate)] {
			continue
		}
		if strings.HasPrefix(key, "state of ") || strings.HasPrefix(key, "people of ") {
			continue
		}
		if wordCount(candidate) <= maxShortNameWords {
			return candidate
		}
	}
	return ""
}

func splitVersus(name string) []string {
	for _, sep := range []string{" v. ", " vs. ", " v ", " vs "} {
		if i := strings.Index(strings.ToLower(name), sep); i >= 0 {
			return []string{name[:i], name[i+len(sep):]}
		}
	}
	return nil
}

func firstParty(side string) string {
	side = strings.TrimSpace(side)
	for _, sep := range []string{",", " et al", " and "} {
		if i := strings.Index(strings.ToLower(side), sep); i >= 0 {
			side = side[:i]
		}
	}
	return strings.TrimSpace(side)
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
