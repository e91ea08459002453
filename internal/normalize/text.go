package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	enteredSuffixRe   = regexp.MustCompile(`^(.*) \(Entered: .*\)$`)
	bracketedNumberRe = regexp.MustCompile(`\[(\d+)\]`)
	aNumberRe         = regexp.MustCompile(`\bA[- ]?\d{3}[- ]?\d{3}[- ]?\d{2,3}\b`)
	ssnRe             = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	sizeRe            = regexp.MustCompile(`(?i)^\s*([\d.]+)\s*([kmgt]?i?b)\s*$`)
	nonAlnumRe        = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// LongDescription strips the "(Entered: ...)" suffix that docket reports add
// and the brackets docket history reports put around numbers, so the two
// sources produce identical descriptions for the same unnumbered entry.
func LongDescription(desc string) string {
	if desc == "" {
		return ""
	}
	desc = enteredSuffixRe.ReplaceAllString(desc, "$1")
	return bracketedNumberRe.ReplaceAllString(desc, "$1")
}

// Anonymize redacts alien registration numbers and social security numbers.
// The boolean reports whether anything was replaced.
func Anonymize(s string) (string, bool) {
	out := aNumberRe.ReplaceAllString(s, "A-XXX-XXX-XXX")
	out = ssnRe.ReplaceAllString(out, "XXX-XX-XXXX")
	return out, out != s
}

var sizeUnits = map[string]float64{
	"b":   1,
	"kb":  1e3,
	"mb":  1e6,
	"gb":  1e9,
	"tb":  1e12,
	"kib": 1 << 10,
	"mib": 1 << 20,
	"gib": 1 << 30,
	"tib": 1 << 40,
}

// SizeToBytes converts a human size string such as "1.2 MB" to bytes.
func SizeToBytes(size string) (int64, error) {
	m := sizeRe.FindStringSubmatch(size)
	if m == nil {
		return 0, fmt.Errorf("unrecognised size %q", size)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("unrecognised size %q: %w", size, err)
	}
	unit, ok := sizeUnits[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("unrecognised size unit %q", m[2])
	}
	return int64(n * unit), nil
}

// LookupKey folds parts into a comparison key: NFKC, case folded, with every
// run of non alphanumerics removed. A Caser is stateful, so one is built per
// call.
func LookupKey(parts ...string) string {
	joined := strings.Join(parts, " ")
	folded := cases.Fold().String(norm.NFKC.String(joined))
	return nonAlnumRe.ReplaceAllString(folded, "")
}

// CollapseSpaces trims s and collapses internal whitespace runs.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(multipleSpacesRe.ReplaceAllString(s, " "))
}
