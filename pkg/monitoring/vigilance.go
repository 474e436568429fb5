package monitoring

import "github.com/veriscope/screening/pkg/domain"

// roleDefaultLevel is the starting vigilance level for a role category,
// before any risk-score-based escalation (spec §4.9).
var roleDefaultLevel = map[domain.RoleCategory]VigilanceLevel{
	domain.RoleGovernment:     VigilanceBiweekly,
	domain.RoleSecurity:       VigilanceBiweekly,
	domain.RoleExecutive:      VigilanceMonthly,
	domain.RoleFinancial:      VigilanceMonthly,
	domain.RoleHealthcare:     VigilanceMonthly,
	domain.RoleEducation:      VigilanceMonthly,
	domain.RoleTransportation: VigilanceMonthly,
	domain.RoleStandard:       VigilanceAnnual,
	domain.RoleContractor:     VigilanceAnnual,
}

// levelRank orders levels so escalation can be expressed as "the higher of
// two levels" without a chain of if-statements.
var levelRank = map[VigilanceLevel]int{
	VigilanceNone:     0,
	VigilanceAnnual:   1,
	VigilanceMonthly:  2,
	VigilanceBiweekly: 3,
}

func higher(a, b VigilanceLevel) VigilanceLevel {
	if levelRank[a] >= levelRank[b] {
		return a
	}
	return b
}

// VigilanceManager determines a subject's monitoring cadence from role and
// risk score. Risk-based escalation is automatic; de-escalation is never
// automatic and requires an explicit override by a caller that bypasses
// this type entirely (spec §4.9).
type VigilanceManager struct{}

func NewVigilanceManager() *VigilanceManager { return &VigilanceManager{} }

// DefaultFor returns the role-based starting level for a subject with no
// prior vigilance history.
func (m *VigilanceManager) DefaultFor(role domain.RoleCategory) VigilanceLevel {
	if level, ok := roleDefaultLevel[role]; ok {
		return level
	}
	return VigilanceAnnual
}

// riskForcedLevel returns the minimum level a risk score forces, regardless
// of role (spec §4.9: ">=75 forces >=V3; >=50 forces >=V2").
func riskForcedLevel(riskScore float64) VigilanceLevel {
	switch {
	case riskScore >= 75:
		return VigilanceBiweekly
	case riskScore >= 50:
		return VigilanceMonthly
	default:
		return VigilanceNone
	}
}

// Evaluate computes the level a subject should carry given its role,
// current level, and latest risk score. The result is always at least as
// high as current: this method only escalates, never de-escalates.
func (m *VigilanceManager) Evaluate(role domain.RoleCategory, current VigilanceLevel, riskScore float64) VigilanceLevel {
	target := higher(m.DefaultFor(role), riskForcedLevel(riskScore))
	return higher(current, target)
}

// Escalated reports whether Evaluate's result is strictly higher than
// current, so callers can log/audit an escalation event distinctly from a
// no-op re-evaluation.
func Escalated(current, next VigilanceLevel) bool {
	return levelRank[next] > levelRank[current]
}
