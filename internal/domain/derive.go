package domain

import (
	"regexp"
	"strings"
)

var (
	prefixExpr  = regexp.MustCompile(`^[A-Za-z]+`)
	englishExpr = regexp.MustCompile(`[A-Za-z][A-Za-z0-9 ,.&()'/-]*$`)
)

// CodePrefix returns the leading alphabetic run of an identifier, or "" for
// purely numeric codes.
func CodePrefix(code string) string {
	return prefixExpr.FindString(strings.TrimSpace(code))
}

// SplitLocalizedName separates a composite facility name into its Japanese
// and English parts. The directory renders both locales in a single cell,
// Japanese first; the English part is the trailing ASCII run, when present.
func SplitLocalizedName(name string) (ja, en string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}

	en = strings.TrimSpace(englishExpr.FindString(name))
	ja = strings.TrimSpace(strings.TrimSuffix(name, en))
	ja = strings.TrimRight(ja, " 　")

	// An all-ASCII name has no Japanese half to split off.
	if ja == "" {
		return name, en
	}
	return ja, en
}
