package masterdata

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.French)

// NormalizeName collapses whitespace and title-cases a display name.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(fields, " "))
}

// NormalizeCode trims and upper-cases an identifier code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
