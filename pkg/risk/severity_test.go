package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/risk"
)

func TestSeverityCalculator_PatternMatchWins(t *testing.T) {
	calc := risk.NewSeverityCalculator()
	f := domain.Finding{Summary: "Subject convicted of felony fraud", DiscoveredAt: time.Now().Add(-10 * 365 * 24 * time.Hour)}

	decision := calc.Calculate(f, domain.CategoryCriminal, domain.RoleStandard)

	assert.Equal(t, domain.SeverityCritical, decision.InitialSeverity)
	assert.Contains(t, decision.MatchedRule, "pattern:")
}

func TestSeverityCalculator_SubCategoryDefaultFallback(t *testing.T) {
	calc := risk.NewSeverityCalculator()
	f := domain.Finding{Summary: "unrelated text", SubCategory: "FINANCIAL_LIEN", DiscoveredAt: time.Now().Add(-10 * 365 * 24 * time.Hour)}

	decision := calc.Calculate(f, domain.CategoryFinancial, domain.RoleStandard)

	assert.Equal(t, domain.SeverityMedium, decision.InitialSeverity)
	assert.Equal(t, "subcategory_default:FINANCIAL_LIEN", decision.MatchedRule)
}

func TestSeverityCalculator_RoleAlignmentBumpsOneLevel(t *testing.T) {
	calc := risk.NewSeverityCalculator()
	f := domain.Finding{Summary: "misdemeanor charge on record", DiscoveredAt: time.Now().Add(-10 * 365 * 24 * time.Hour)}

	decision := calc.Calculate(f, domain.CategoryCriminal, domain.RoleGovernment)

	assert.Equal(t, domain.SeverityMedium, decision.InitialSeverity)
	assert.Equal(t, domain.SeverityHigh, decision.FinalSeverity)
	assert.Contains(t, decision.Adjustments, "role_alignment")
}

func TestSeverityCalculator_RecencyBump(t *testing.T) {
	calc := risk.NewSeverityCalculator()
	f := domain.Finding{Summary: "misdemeanor charge on record", DiscoveredAt: time.Now().Add(-30 * 24 * time.Hour)}

	decision := calc.Calculate(f, domain.CategoryBehavioral, domain.RoleStandard)

	assert.Equal(t, domain.SeverityHigh, decision.FinalSeverity)
	assert.Contains(t, decision.Adjustments, "recency")
}

func TestSeverityCalculator_BumpNeverExceedsCritical(t *testing.T) {
	calc := risk.NewSeverityCalculator()
	f := domain.Finding{Summary: "sanctioned entity involvement", DiscoveredAt: time.Now()}

	decision := calc.Calculate(f, domain.CategoryRegulatory, domain.RoleGovernment)

	assert.Equal(t, domain.SeverityCritical, decision.InitialSeverity)
	assert.Equal(t, domain.SeverityCritical, decision.FinalSeverity)
}
