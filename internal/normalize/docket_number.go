// Package normalize holds the pure cleanup functions applied to scraped fields
// before any of them reach storage.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	districtNumberRe = regexp.MustCompile(`(?:\d:)?(\d\d)-..-(\d+)`)
	shortNumberRe    = regexp.MustCompile(`(\d\d)-(\d+)`)
	cleanDistrictRe  = regexp.MustCompile(`(?:\d{1,2}:)?\d{2}-[a-z]{1,5}-\d{1,10}`)
	cleanShortRe     = regexp.MustCompile(`\d{2}-\d{1,10}`)
	longDocNumberRe  = regexp.MustCompile(`^\d{9,}$`)
	nonDigitsRe      = regexp.MustCompile(`\D`)
	multipleSpacesRe = regexp.MustCompile(`\s+`)
)

// DocketNumberCore reduces a docket number to its YYNNNNN core, the form used
// to match the same case across feeds that punctuate it differently. It
// returns "" when no core can be derived.
func DocketNumberCore(docketNumber string) string {
	if docketNumber == "" {
		return ""
	}
	if m := districtNumberRe.FindStringSubmatch(docketNumber); m != nil {
		return formatCore(m[1], m[2])
	}
	if m := shortNumberRe.FindStringSubmatch(docketNumber); m != nil {
		return formatCore(m[1], m[2])
	}
	return ""
}

func formatCore(year, serial string) string {
	n, err := strconv.ParseInt(serial, 10, 64)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s%05d", year, n)
}

// CleanDocketNumber extracts the canonical docket number from a raw value,
// dropping judge initials, defendant numbers and surrounding noise.
func CleanDocketNumber(docketNumber string) string {
	dn := strings.ToLower(strings.TrimSpace(docketNumber))
	if dn == "" {
		return ""
	}
	if m := cleanDistrictRe.FindString(dn); m != "" {
		return m
	}
	if m := cleanShortRe.FindString(dn); m != "" {
		return m
	}
	return dn
}

// EntryNumber parses a scraped document number into an entry number. Blank
// or non-numeric values yield nil, marking the entry unnumbered.
func EntryNumber(documentNumber string) *int64 {
	s := strings.TrimSpace(documentNumber)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// IsLongAppellateDocumentNumber reports whether an appellate document number
// is one of the long upstream identifiers rather than a short entry number.
func IsLongAppellateDocumentNumber(documentNumber string) bool {
	return longDocNumberRe.MatchString(strings.TrimSpace(documentNumber))
}
