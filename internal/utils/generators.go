package utils

import (
	"strings"

	"github.com/google/uuid"
)

const TicketIDLength = 8

// GenerateTicketID returns the first 8 hex characters of a random UUID v4,
// upper-cased.
func GenerateTicketID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:TicketIDLength])
}

// NormalizeTeamCode returns the dedup key for a team code.
func NormalizeTeamCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
