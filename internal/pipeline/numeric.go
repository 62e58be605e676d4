package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var numberStripper = strings.NewReplacer(
	"$", "", "€", "", "£", "", "¥", "",
	",", "", " ", "", "\u00a0", "", "%", "",
	"−", "-",
)

var yearPattern = regexp.MustCompile(`^(19|20)\d{2}$`)

// ParseNumber parses a financial cell. Currency symbols, thousands separators
// and percent signs are stripped; parentheses mark a negative value. Dashes,
// N/A and anything else that does not parse report ok=false.
func ParseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "-", "—", "–", "n/a", "na", "nm":
		return 0, false
	}

	s = numberStripper.Replace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "." || s == "-" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative && v > 0 {
		v = -v
	}
	return v, true
}

// isNumericLooking reports whether a cell reads as a data value rather than a
// label. Bare four-digit years are labels (column headers like "2023").
func isNumericLooking(raw string) bool {
	s := strings.TrimSpace(raw)
	if yearPattern.MatchString(s) {
		return false
	}
	_, ok := ParseNumber(s)
	return ok
}
