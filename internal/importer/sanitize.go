package importer

import (
	"strings"
	"unicode"
)

// SanitizeFilename keeps letters, digits, spaces, underscores and hyphens,
// then trims surrounding spaces. "O'Brien / Team #1!" becomes "OBrien  Team 1".
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
