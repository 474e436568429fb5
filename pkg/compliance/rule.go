package compliance

import "github.com/veriscope/screening/pkg/domain"

// Rule is a single jurisdiction/check/role permission entry (spec §4.3). A
// nil pointer field means "unset" and is not treated as a denial — the
// engine's default posture is permissive unless a rule explicitly blocks.
type Rule struct {
	Locale             Locale
	CheckType          string
	RoleCategory       *domain.RoleCategory
	Permitted          *bool
	LookbackDays       *int
	RequiresConsent    bool
	RequiresDisclosure bool
	PermittedRoles     []domain.RoleCategory
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
func rolePtr(r domain.RoleCategory) *domain.RoleCategory { return &r }

// ruleKey is the lookup key used by the rule table: (locale, check_type,
// role). An empty RoleCategory means "role-agnostic".
type ruleKey struct {
	locale    Locale
	checkType string
	role      domain.RoleCategory
}

// RuleSet is a read-mostly table of compliance rules, indexed for the
// lookup order from spec §4.3: exact (locale, check, role) -> (locale,
// check) -> parent locale -> default.
type RuleSet struct {
	rules map[ruleKey]Rule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{rules: make(map[ruleKey]Rule)}
}

func (rs *RuleSet) Add(r Rule) {
	role := domain.RoleCategory("")
	if r.RoleCategory != nil {
		role = *r.RoleCategory
	}
	rs.rules[ruleKey{locale: r.Locale, checkType: r.CheckType, role: role}] = r
}

// lookup tries (locale, checkType, role) then (locale, checkType).
func (rs *RuleSet) lookup(locale Locale, checkType string, role domain.RoleCategory) (Rule, bool) {
	if role != "" {
		if r, ok := rs.rules[ruleKey{locale, checkType, role}]; ok {
			return r, true
		}
	}
	if r, ok := rs.rules[ruleKey{locale, checkType, ""}]; ok {
		return r, true
	}
	return Rule{}, false
}
