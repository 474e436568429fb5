package risk

import (
	"strings"
	"time"

	"github.com/veriscope/screening/pkg/domain"
)

// patternRule is one entry in the 28-pattern table (spec §4.6): an
// explicit severity assigned to summary/details text matching keyword.
type patternRule struct {
	keyword  string
	severity domain.Severity
}

// patternTable is checked first, in order, against a finding's
// Summary+Details. The first match wins.
var patternTable = []patternRule{
	{"murder", domain.SeverityCritical},
	{"homicide", domain.SeverityCritical},
	{"terrorism", domain.SeverityCritical},
	{"sanctions list", domain.SeverityCritical},
	{"sanctioned entity", domain.SeverityCritical},
	{"child", domain.SeverityCritical},
	{"felony", domain.SeverityCritical},
	{"fraud", domain.SeverityHigh},
	{"embezzlement", domain.SeverityHigh},
	{"bankruptcy", domain.SeverityHigh},
	{"debarred", domain.SeverityHigh},
	{"pep", domain.SeverityHigh},
	{"license revoked", domain.SeverityHigh},
	{"assault", domain.SeverityHigh},
	{"warrant", domain.SeverityHigh},
	{"misdemeanor", domain.SeverityMedium},
	{"lien", domain.SeverityMedium},
	{"lawsuit", domain.SeverityMedium},
	{"eviction", domain.SeverityMedium},
	{"judgment", domain.SeverityMedium},
	{"license suspended", domain.SeverityMedium},
	{"employment gap", domain.SeverityMedium},
	{"credential", domain.SeverityMedium},
	{"adverse media", domain.SeverityMedium},
	{"shared address", domain.SeverityLow},
	{"alias", domain.SeverityLow},
	{"minor traffic", domain.SeverityLow},
	{"parking violation", domain.SeverityLow},
}

// subCategoryDefaults is the second cascade tier: a default severity when
// no pattern rule matched but a sub-category is known.
var subCategoryDefaults = map[string]domain.Severity{
	"CRIMINAL_FELONY":                  domain.SeverityHigh,
	"CRIMINAL_MISDEMEANOR":             domain.SeverityMedium,
	"CRIMINAL_VIOLENT":                 domain.SeverityCritical,
	"CRIMINAL_FRAUD":                   domain.SeverityHigh,
	"CRIMINAL_THEFT":                   domain.SeverityMedium,
	"CRIMINAL_OUTSTANDING_WARRANT":     domain.SeverityHigh,
	"FINANCIAL_BANKRUPTCY":             domain.SeverityHigh,
	"FINANCIAL_LIEN":                   domain.SeverityMedium,
	"FINANCIAL_FORECLOSURE":            domain.SeverityMedium,
	"FINANCIAL_JUDGMENT":               domain.SeverityMedium,
	"FINANCIAL_GARNISHMENT":            domain.SeverityMedium,
	"REGULATORY_SANCTIONS":             domain.SeverityCritical,
	"REGULATORY_PEP":                   domain.SeverityHigh,
	"REGULATORY_LICENSE_REVOKED":       domain.SeverityHigh,
	"REGULATORY_LICENSE_SUSPENDED":     domain.SeverityMedium,
	"REGULATORY_DEBARMENT":             domain.SeverityHigh,
	"REGULATORY_CONSENT_ORDER":         domain.SeverityMedium,
	"REPUTATION_ADVERSE_MEDIA":         domain.SeverityMedium,
	"REPUTATION_SCANDAL":               domain.SeverityMedium,
	"REPUTATION_BOYCOTT":               domain.SeverityLow,
	"REPUTATION_MISCONDUCT":            domain.SeverityMedium,
	"VERIFICATION_CREDENTIAL_MISMATCH": domain.SeverityMedium,
	"VERIFICATION_DEGREE_UNVERIFIED":   domain.SeverityMedium,
	"VERIFICATION_EMPLOYMENT_GAP":      domain.SeverityLow,
	"VERIFICATION_IDENTITY_MISMATCH":   domain.SeverityHigh,
	"VERIFICATION_UNDISCLOSED_ALIAS":   domain.SeverityLow,
	"BEHAVIORAL_CIVIL_LITIGATION":      domain.SeverityMedium,
	"BEHAVIORAL_RESTRAINING_ORDER":     domain.SeverityHigh,
	"BEHAVIORAL_HARASSMENT_COMPLAINT":  domain.SeverityMedium,
	"BEHAVIORAL_EVICTION":              domain.SeverityLow,
	"NETWORK_SHELL_COMPANY":            domain.SeverityHigh,
	"NETWORK_UNDISCLOSED_RELATIONSHIP": domain.SeverityMedium,
	"NETWORK_SHARED_ADDRESS":           domain.SeverityLow,
	"NETWORK_CONFLICT_OF_INTEREST":     domain.SeverityMedium,
}

// configDefaultSeverity is the final cascade tier (spec §4.6).
const configDefaultSeverity = domain.SeverityMedium

// roleAlignmentPairs are the pre-declared (category, role) combinations
// that bump severity by one level (spec §4.6: "CRIMINAL×GOVERNMENT,
// FINANCIAL×FINANCIAL, etc.").
var roleAlignmentPairs = map[domain.Category]map[domain.RoleCategory]struct{}{
	domain.CategoryCriminal:     {domain.RoleGovernment: {}, domain.RoleSecurity: {}},
	domain.CategoryFinancial:    {domain.RoleFinancial: {}, domain.RoleExecutive: {}},
	domain.CategoryRegulatory:   {domain.RoleGovernment: {}, domain.RoleFinancial: {}},
	domain.CategoryBehavioral:   {domain.RoleHealthcare: {}, domain.RoleEducation: {}},
	domain.CategoryNetwork:      {domain.RoleExecutive: {}, domain.RoleFinancial: {}},
	domain.CategoryVerification: {domain.RoleEducation: {}, domain.RoleHealthcare: {}},
}

const recencyWindow = 365 * 24 * time.Hour

// SeverityDecision is the Severity Calculator's full audit trail for one
// finding — initial severity, which cascade tier matched, and which
// adjustments fired (spec §4.6: "audit input, not just the final value").
type SeverityDecision struct {
	InitialSeverity domain.Severity
	MatchedRule     string
	Adjustments     []string
	FinalSeverity   domain.Severity
}

// SeverityCalculator implements the three-tier cascade plus role-alignment
// and recency adjustments (spec §4.6).
type SeverityCalculator struct{}

func NewSeverityCalculator() *SeverityCalculator { return &SeverityCalculator{} }

// Calculate runs the cascade for one finding, given its classification
// (for role-alignment) and discovery time (for recency).
func (c *SeverityCalculator) Calculate(f domain.Finding, category domain.Category, role domain.RoleCategory) SeverityDecision {
	severity, rule := baseSeverity(f)
	decision := SeverityDecision{InitialSeverity: severity, MatchedRule: rule, FinalSeverity: severity}

	if aligned(category, role) {
		decision.FinalSeverity = decision.FinalSeverity.Bump()
		decision.Adjustments = append(decision.Adjustments, "role_alignment")
	}

	if isRecent(f.DiscoveredAt) {
		decision.FinalSeverity = decision.FinalSeverity.Bump()
		decision.Adjustments = append(decision.Adjustments, "recency")
	}

	return decision
}

func baseSeverity(f domain.Finding) (domain.Severity, string) {
	lower := strings.ToLower(f.Summary + " " + f.Details)
	for _, rule := range patternTable {
		if strings.Contains(lower, rule.keyword) {
			return rule.severity, "pattern:" + rule.keyword
		}
	}

	if sev, ok := subCategoryDefaults[f.SubCategory]; ok {
		return sev, "subcategory_default:" + f.SubCategory
	}

	return configDefaultSeverity, "config_default"
}

func aligned(category domain.Category, role domain.RoleCategory) bool {
	roles, ok := roleAlignmentPairs[category]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}

func isRecent(discoveredAt time.Time) bool {
	if discoveredAt.IsZero() {
		return false
	}
	return time.Since(discoveredAt) <= recencyWindow
}
