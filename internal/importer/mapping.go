package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"entrypass/internal/utils"
)

type Field string

const (
	FieldTeamCode       Field = "team_code"
	FieldTeamName       Field = "team_name"
	FieldTeamSize       Field = "team_size"
	FieldCollegeName    Field = "college_name"
	FieldEmail          Field = "team_leader_email"
	FieldLeaderName     Field = "leader_name"
	FieldProjectDomain  Field = "project_domain"
	FieldProjectTitle   Field = "project_title"
	FieldTShirtSizes    Field = "tshirt_sizes"
	FieldFoodPreference Field = "food_preference"
)

// MemberField names the n-th (1-based) team member column.
func MemberField(n int) Field {
	return Field(fmt.Sprintf("member_%d", n))
}

// ColumnRule maps one target field to the source columns that can feed it.
// The first listed column present in the source wins. A non-nil
// Placeholders replaces the mapper's list for this field.
type ColumnRule struct {
	Field        Field
	Columns      []string
	Default      string
	Normalize    func(string) string
	Placeholders []string
}

// DefaultPlaceholders are cell values that mean "no value".
var DefaultPlaceholders = []string{"nan", "none", "null", "#n/a"}

// KeyPlaceholders apply to team code and team name, where "None" or "Null"
// can be a real team.
var KeyPlaceholders = []string{"nan"}

// DefaultColumns is the registration sheet layout.
func DefaultColumns(maxMembers int) []ColumnRule {
	rules := []ColumnRule{
		{Field: FieldTeamCode, Columns: []string{"Team Code"}, Normalize: utils.NormalizeTeamCode, Placeholders: KeyPlaceholders},
		{Field: FieldTeamName, Columns: []string{"Team Name"}, Placeholders: KeyPlaceholders},
		{Field: FieldTeamSize, Columns: []string{"Team Size"}},
		{Field: FieldCollegeName, Columns: []string{"Institution Name", "College Name"}},
		{Field: FieldEmail, Columns: []string{"Email Address", "Email"}},
		{Field: FieldLeaderName, Columns: []string{"Team Leader Name"}},
		{Field: FieldProjectDomain, Columns: []string{"Project Domain"}},
		{Field: FieldProjectTitle, Columns: []string{"Project Title"}},
		{Field: FieldTShirtSizes, Columns: []string{"Enter T-Shirt Sizes (Collective Format)", "T-Shirt Sizes", "T-Shirt Size"}},
		{Field: FieldFoodPreference, Columns: []string{"Food Preference (Veg / Non-Veg)", "Food Preference"}},
	}

	for n := 1; n <= maxMembers; n++ {
		columns := []string{fmt.Sprintf("Team Member %d Name", n)}
		if n == 1 {
			columns = []string{"Team Member 1 Name (Leader)", "Team Member 1 Name"}
		}
		rules = append(rules, ColumnRule{Field: MemberField(n), Columns: columns})
	}
	return rules
}

// Record is a mapped row: every configured field has a clean value.
type Record struct {
	Index  int
	values map[Field]string
}

func (r Record) Get(f Field) string {
	return r.values[f]
}

type Mapper struct {
	Rules        []ColumnRule
	Placeholders []string
}

func NewMapper(rules []ColumnRule) *Mapper {
	return &Mapper{Rules: rules, Placeholders: DefaultPlaceholders}
}

// Map applies every rule the same way: trim, drop placeholders, fall back
// to the default, then normalize.
func (m *Mapper) Map(row Row) Record {
	values := make(map[Field]string, len(m.Rules))
	for _, rule := range m.Rules {
		value := ""
		for _, column := range rule.Columns {
			if raw, ok := row.Get(column); ok {
				value = raw
				break
			}
		}

		placeholders := m.Placeholders
		if rule.Placeholders != nil {
			placeholders = rule.Placeholders
		}
		value = clean(value, placeholders)
		if value == "" {
			value = rule.Default
		}
		if rule.Normalize != nil {
			value = rule.Normalize(value)
		}
		values[rule.Field] = value
	}
	return Record{Index: row.Index, values: values}
}

func clean(value string, placeholders []string) string {
	value = strings.TrimSpace(value)
	for _, p := range placeholders {
		if strings.EqualFold(value, p) {
			return ""
		}
	}
	return value
}

// ParseTeamSize accepts integers and integral decimals ("5", "5.0"). Any
// blank, malformed or non-positive value yields fallback.
func ParseTeamSize(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n > 0 {
			return n
		}
		return fallback
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f > 0 && f == math.Trunc(f) && f <= math.MaxInt32 {
		return int(f)
	}
	return fallback
}
