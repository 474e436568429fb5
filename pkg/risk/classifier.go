// Package risk implements the classification, severity, scoring, pattern/
// anomaly, and connection-propagation pipeline that turns SAR findings into
// a screening's risk assessment (spec §4.6).
package risk

import (
	"context"
	"strings"

	"github.com/veriscope/screening/pkg/domain"
)

// subCategoryRule maps a keyword to the fixed category it belongs to and
// the sub-category label attached to a match (spec §4.6: 30+ sub-
// categories, e.g. CRIMINAL_FELONY, FINANCIAL_BANKRUPTCY, REGULATORY_PEP).
type subCategoryRule struct {
	keyword     string
	category    domain.Category
	subCategory string
}

// keywordTable is the classifier's rule set. Not exhaustive of every
// conceivable pattern, but covers at least the named examples from spec
// §4.6 across all seven categories plus enough neighbors to exercise the
// Role-Relevance Matrix meaningfully.
var keywordTable = []subCategoryRule{
	{"felony", domain.CategoryCriminal, "CRIMINAL_FELONY"},
	{"misdemeanor", domain.CategoryCriminal, "CRIMINAL_MISDEMEANOR"},
	{"assault", domain.CategoryCriminal, "CRIMINAL_VIOLENT"},
	{"fraud", domain.CategoryCriminal, "CRIMINAL_FRAUD"},
	{"theft", domain.CategoryCriminal, "CRIMINAL_THEFT"},
	{"warrant", domain.CategoryCriminal, "CRIMINAL_OUTSTANDING_WARRANT"},

	{"bankruptcy", domain.CategoryFinancial, "FINANCIAL_BANKRUPTCY"},
	{"lien", domain.CategoryFinancial, "FINANCIAL_LIEN"},
	{"foreclosure", domain.CategoryFinancial, "FINANCIAL_FORECLOSURE"},
	{"judgment", domain.CategoryFinancial, "FINANCIAL_JUDGMENT"},
	{"wage garnish", domain.CategoryFinancial, "FINANCIAL_GARNISHMENT"},

	{"sanction", domain.CategoryRegulatory, "REGULATORY_SANCTIONS"},
	{"pep", domain.CategoryRegulatory, "REGULATORY_PEP"},
	{"politically exposed", domain.CategoryRegulatory, "REGULATORY_PEP"},
	{"license revoked", domain.CategoryRegulatory, "REGULATORY_LICENSE_REVOKED"},
	{"license suspended", domain.CategoryRegulatory, "REGULATORY_LICENSE_SUSPENDED"},
	{"debarred", domain.CategoryRegulatory, "REGULATORY_DEBARMENT"},
	{"consent order", domain.CategoryRegulatory, "REGULATORY_CONSENT_ORDER"},

	{"adverse media", domain.CategoryReputation, "REPUTATION_ADVERSE_MEDIA"},
	{"scandal", domain.CategoryReputation, "REPUTATION_SCANDAL"},
	{"boycott", domain.CategoryReputation, "REPUTATION_BOYCOTT"},
	{"misconduct", domain.CategoryReputation, "REPUTATION_MISCONDUCT"},

	{"credential", domain.CategoryVerification, "VERIFICATION_CREDENTIAL_MISMATCH"},
	{"degree not found", domain.CategoryVerification, "VERIFICATION_DEGREE_UNVERIFIED"},
	{"employment gap", domain.CategoryVerification, "VERIFICATION_EMPLOYMENT_GAP"},
	{"identity mismatch", domain.CategoryVerification, "VERIFICATION_IDENTITY_MISMATCH"},
	{"alias", domain.CategoryVerification, "VERIFICATION_UNDISCLOSED_ALIAS"},

	{"lawsuit", domain.CategoryBehavioral, "BEHAVIORAL_CIVIL_LITIGATION"},
	{"restraining order", domain.CategoryBehavioral, "BEHAVIORAL_RESTRAINING_ORDER"},
	{"harassment", domain.CategoryBehavioral, "BEHAVIORAL_HARASSMENT_COMPLAINT"},
	{"eviction", domain.CategoryBehavioral, "BEHAVIORAL_EVICTION"},

	{"shell company", domain.CategoryNetwork, "NETWORK_SHELL_COMPANY"},
	{"undisclosed relationship", domain.CategoryNetwork, "NETWORK_UNDISCLOSED_RELATIONSHIP"},
	{"shared address", domain.CategoryNetwork, "NETWORK_SHARED_ADDRESS"},
	{"conflict of interest", domain.CategoryNetwork, "NETWORK_CONFLICT_OF_INTEREST"},
}

// roleRelevanceMatrix returns a value in [0,1] for each (category,
// role_category) pair (spec §4.6 examples: CRIMINAL×GOVERNMENT=1.0,
// CRIMINAL×STANDARD=0.7). Entries omitted from the table fall back to
// defaultRoleRelevance.
var roleRelevanceMatrix = map[domain.Category]map[domain.RoleCategory]float64{
	domain.CategoryCriminal: {
		domain.RoleGovernment: 1.0, domain.RoleSecurity: 1.0, domain.RoleStandard: 0.7,
		domain.RoleExecutive: 0.9, domain.RoleContractor: 0.6, domain.RoleFinancial: 0.9,
	},
	domain.CategoryFinancial: {
		domain.RoleFinancial: 1.0, domain.RoleExecutive: 0.9, domain.RoleGovernment: 0.8,
		domain.RoleStandard: 0.5,
	},
	domain.CategoryRegulatory: {
		domain.RoleGovernment: 1.0, domain.RoleSecurity: 0.9, domain.RoleFinancial: 0.9,
		domain.RoleStandard: 0.6,
	},
	domain.CategoryReputation: {
		domain.RoleExecutive: 1.0, domain.RoleGovernment: 0.8, domain.RoleStandard: 0.5,
	},
	domain.CategoryVerification: {
		domain.RoleEducation: 0.9, domain.RoleHealthcare: 0.9, domain.RoleStandard: 0.8,
	},
	domain.CategoryBehavioral: {
		domain.RoleHealthcare: 0.9, domain.RoleEducation: 0.9, domain.RoleStandard: 0.6,
	},
	domain.CategoryNetwork: {
		domain.RoleExecutive: 0.9, domain.RoleFinancial: 0.9, domain.RoleGovernment: 0.8,
		domain.RoleStandard: 0.4,
	},
}

const defaultRoleRelevance = 0.7

// AIAdapter is the optional model-assisted classification seam shared in
// shape with pkg/sar.AIAdapter (spec §9 Design Notes): nil means rule-only.
type AIAdapter interface {
	Classify(ctx context.Context, text string) (category domain.Category, subCategory string, confidence float64, err error)
}

// ClassificationResult records both what an AI adapter proposed (if any)
// and the final, rule-authoritative verdict (spec §4.6).
type ClassificationResult struct {
	OriginalCategory    domain.Category
	OriginalSubCategory string
	Category            domain.Category
	SubCategory          string
	Confidence           float64
	MatchedKeywords      []string
	RoleRelevance        float64
	WasReclassified      bool
}

// Classifier maps finding text to a fixed category/sub-category and scores
// its relevance to the subject's role (spec §4.6).
type Classifier struct {
	ai AIAdapter
}

func NewClassifier(ai AIAdapter) *Classifier {
	return &Classifier{ai: ai}
}

// Classify runs the keyword rules over text, optionally lets an AI adapter
// propose a category, and reconciles the two: the final category and
// sub-category are always the keyword result. An AI proposal that agrees
// with it at or above minValidationConfidence supplies the confidence; one
// that disagrees is recorded in OriginalCategory and sets WasReclassified.
// This is stricter than pkg/sar's finding-extraction revalidation, which
// keeps a differing AI label when keyword evidence is present.
func (c *Classifier) Classify(ctx context.Context, text string, role domain.RoleCategory) ClassificationResult {
	category, subCategory, confidence, matched := matchKeywords(text)

	result := ClassificationResult{
		Category:        category,
		SubCategory:     subCategory,
		Confidence:      confidence,
		MatchedKeywords: matched,
	}

	if c.ai != nil {
		aiCategory, aiSub, aiConfidence, err := c.ai.Classify(ctx, text)
		if err == nil {
			result.OriginalCategory = aiCategory
			result.OriginalSubCategory = aiSub
			if aiCategory == category && len(matched) > 0 && aiConfidence >= minValidationConfidence {
				result.Confidence = aiConfidence
			} else if aiCategory != category {
				result.WasReclassified = true
			}
		}
	}

	result.RoleRelevance = RoleRelevance(result.Category, role)
	return result
}

// minValidationConfidence mirrors pkg/sar's floor (spec §4.5/§4.6 share the
// same revalidation threshold).
const minValidationConfidence = 0.7

func matchKeywords(text string) (domain.Category, string, float64, []string) {
	lower := strings.ToLower(text)
	var matched []string
	var category domain.Category
	var subCategory string

	for _, rule := range keywordTable {
		if strings.Contains(lower, rule.keyword) {
			matched = append(matched, rule.keyword)
			if category == "" {
				category, subCategory = rule.category, rule.subCategory
			}
		}
	}

	if len(matched) == 0 {
		return domain.CategoryBehavioral, "BEHAVIORAL_UNCLASSIFIED", 0.3, nil
	}

	confidence := 0.6 + 0.1*float64(len(matched))
	if confidence > 0.95 {
		confidence = 0.95
	}
	return category, subCategory, confidence, matched
}

// RoleRelevance returns the Role-Relevance Matrix value for (category,
// role), falling back to defaultRoleRelevance when the pair is unlisted.
func RoleRelevance(category domain.Category, role domain.RoleCategory) float64 {
	byRole, ok := roleRelevanceMatrix[category]
	if !ok {
		return defaultRoleRelevance
	}
	if v, ok := byRole[role]; ok {
		return v
	}
	return defaultRoleRelevance
}
