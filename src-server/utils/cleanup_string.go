package utils

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TidySummary normalizes an extracted event title: collapse whitespace,
// capitalize the leading word, drop a trailing period. Only the first word is
// touched so names and acronyms survive.
func TidySummary(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	fields[0] = cases.Title(language.English).String(fields[0])
	return strings.TrimSuffix(strings.Join(fields, " "), ".")
}
