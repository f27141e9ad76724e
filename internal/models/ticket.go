package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

const (
	CreatedByBulkImport  = "bulk_import"
	CreatedByInteractive = "interactive"

	PositionLeader = "Team Leader"
)

type TeamMember struct {
	Name     string `json:"name"`
	Position string `json:"position"`
	MemberID int    `json:"member_id"`
}

type Ticket struct {
	bun.BaseModel `bun:"table:tickets" json:"-"`

	TicketID        string       `bun:"ticket_id,pk" json:"ticket_id"`
	UserID          string       `bun:"user_id,notnull,unique" json:"user_id"`
	TeamName        string       `bun:"team_name" json:"team_name"`
	CollegeName     string       `bun:"college_name" json:"college_name"`
	TeamLeaderEmail string       `bun:"team_leader_email" json:"team_leader_email"`
	TeamSize        int          `bun:"team_size" json:"team_size"`
	TeamMembers     []TeamMember `bun:"team_members" json:"team_members"`
	Slot            string       `bun:"slot" json:"slot"`
	EventName       string       `bun:"event_name" json:"event_name"`
	QRPayload       string       `bun:"qr_payload" json:"qr_payload"`
	ProjectDomain   string       `bun:"project_domain" json:"project_domain"`
	ProjectTitle    string       `bun:"project_title" json:"project_title"`
	TShirtSizes     string       `bun:"tshirt_sizes" json:"tshirt_sizes"`
	FoodPreference  string       `bun:"food_preference" json:"food_preference"`
	CreatedAt       time.Time    `bun:"created_at,notnull" json:"created_at"`
	CreatedBy       string       `bun:"created_by" json:"created_by"`
}

// BuildTeamMembers turns the non-empty member names into an ordered roster.
// Entry 1 is the leader; when no names are given a lone leader entry is built
// from leaderName. The result is empty only if both are blank.
func BuildTeamMembers(names []string, leaderName string) []TeamMember {
	members := make([]TeamMember, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		n := len(members) + 1
		members = append(members, TeamMember{
			Name:     name,
			Position: memberPosition(n),
			MemberID: n,
		})
	}

	if len(members) == 0 && leaderName != "" {
		members = append(members, TeamMember{
			Name:     leaderName,
			Position: PositionLeader,
			MemberID: 1,
		})
	}
	return members
}

func memberPosition(n int) string {
	if n == 1 {
		return PositionLeader
	}
	return fmt.Sprintf("Member %d", n)
}
