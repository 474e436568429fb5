package compliance

import (
	"fmt"
	"sync"

	"github.com/veriscope/screening/internal/apierr"
	"github.com/veriscope/screening/pkg/domain"
)

// Decision is the outcome of evaluating one (locale, check_type, role,
// tier) tuple (spec §4.3).
type Decision struct {
	Permitted          bool
	Restrictions        []string
	BlockReason        string
	RequiresConsent    bool
	RequiresDisclosure bool
	LookbackDays       *int
}

// enhancedOnlyChecks are check types only reachable at the Enhanced tier
// (spec §4.3 built-in restriction set).
var enhancedOnlyChecks = map[string]struct{}{
	"credit":    {},
	"financial": {},
}

// alwaysConsentChecks always require consent regardless of rule lookup.
var alwaysConsentChecks = map[string]struct{}{
	"criminal": {},
	"credit":   {},
}

// enhancedOnlyInfoTypes are InformationTypes that require Enhanced tier
// (spec §4.3 service-configuration validation).
var enhancedOnlyInfoTypes = map[domain.InformationType]struct{}{
	domain.InfoDigitalFootprint: {},
	domain.InfoNetworkD3:        {},
}

// Engine evaluates compliance rules for the compliance/provider routing
// layer. It is read-mostly after construction; concurrent Evaluate calls do
// not block each other (spec §5: "tenant settings and compliance rules are
// read-mostly").
type Engine struct {
	mu    sync.RWMutex
	graph *JurisdictionGraph
	rules *RuleSet
	cel   *CELEvaluator
}

func NewEngine(graph *JurisdictionGraph, rules *RuleSet) *Engine {
	if graph == nil {
		graph = DefaultGraph()
	}
	if rules == nil {
		rules = NewRuleSet()
	}
	return &Engine{graph: graph, rules: rules}
}

// WithCEL attaches a CELEvaluator so tenants can override table-driven
// rules with compiled expressions (spec §4.3). Optional: a nil evaluator
// leaves Evaluate purely table-driven.
func (e *Engine) WithCEL(evaluator *CELEvaluator) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cel = evaluator
	return e
}

// overrideID is the lookup key a tenant's loaded CEL override is keyed
// under: "<tenant_id>:<locale>:<check_type>".
func overrideID(tenantID, locale, checkType string) string {
	return tenantID + ":" + locale + ":" + checkType
}

// Evaluate returns the permission decision for a single check, applying
// rule lookup, built-in restrictions, and tier gating in that order (spec
// §4.3).
func (e *Engine) Evaluate(locale Locale, checkType string, role domain.RoleCategory, tier domain.ServiceTier) Decision {
	e.mu.RLock()
	defer e.mu.RUnlock()

	d := Decision{Permitted: true}

	chain := e.graph.Walk(locale)
	var matched Rule
	found := false
	for _, loc := range chain {
		if r, ok := e.rules.lookup(loc, checkType, role); ok {
			matched = r
			found = true
			break
		}
	}

	if found {
		if matched.Permitted != nil && !*matched.Permitted {
			d.Permitted = false
			d.BlockReason = fmt.Sprintf("rule blocks %s in %s", checkType, locale)
		}
		if len(matched.PermittedRoles) > 0 && role != "" {
			allowed := false
			for _, r := range matched.PermittedRoles {
				if r == role {
					allowed = true
					break
				}
			}
			if !allowed {
				d.Permitted = false
				d.BlockReason = fmt.Sprintf("role %s not permitted for %s in %s", role, checkType, locale)
			}
		}
		d.RequiresConsent = matched.RequiresConsent
		d.RequiresDisclosure = matched.RequiresDisclosure
		d.LookbackDays = matched.LookbackDays
	}

	if _, ok := alwaysConsentChecks[checkType]; ok {
		d.RequiresConsent = true
	}

	if _, ok := enhancedOnlyChecks[checkType]; ok && tier != domain.TierEnhanced {
		d.Permitted = false
		d.Restrictions = append(d.Restrictions, "enhanced_tier_required")
		if d.BlockReason == "" {
			d.BlockReason = fmt.Sprintf("%s requires enhanced tier", checkType)
		}
	}

	return d
}

// EvaluateForTenant runs the table-driven Evaluate and then lets a tenant's
// loaded CEL override (if any) veto or grant the decision, so a tenant can
// tighten or relax table-driven defaults without a code change (spec §4.3).
// A missing override or evaluator falls back to the table-driven verdict
// unchanged.
func (e *Engine) EvaluateForTenant(tenantID string, locale Locale, checkType string, role domain.RoleCategory, tier domain.ServiceTier) Decision {
	d := e.Evaluate(locale, checkType, role, tier)

	e.mu.RLock()
	evaluator := e.cel
	e.mu.RUnlock()
	if evaluator == nil {
		return d
	}

	id := overrideID(tenantID, string(locale), checkType)
	permitted, ok := evaluator.Evaluate(id, locale, checkType, string(role), string(tier))
	if !ok {
		return d
	}

	d.Permitted = permitted
	if !permitted {
		d.BlockReason = fmt.Sprintf("tenant override denies %s in %s", checkType, locale)
	}
	return d
}

// ConfigWarning is a non-fatal issue surfaced by ValidateServiceConfig.
type ConfigWarning struct {
	Code    string
	Message string
}

// ServiceConfigInput is the subset of a screening request's configuration
// relevant to compliance validation.
type ServiceConfigInput struct {
	Tier           domain.ServiceTier
	SearchDegree   domain.SearchDegree
	InfoTypes      []domain.InformationType
}

// ValidateServiceConfig enforces hard errors (D3 search degree and
// Enhanced-only information types both require Enhanced tier) and returns
// soft warnings for excluded identity/sanctions checks (spec §4.3).
func (e *Engine) ValidateServiceConfig(cfg ServiceConfigInput) ([]ConfigWarning, error) {
	if cfg.SearchDegree == domain.DegreeD3 && cfg.Tier != domain.TierEnhanced {
		return nil, apierr.New(apierr.KindValidation, "D3 search degree requires enhanced tier").WithDetail("code", "d3_requires_enhanced")
	}

	hasIdentity, hasSanctions := false, false
	for _, t := range cfg.InfoTypes {
		if t == domain.InfoIdentity {
			hasIdentity = true
		}
		if t == domain.InfoSanctions {
			hasSanctions = true
		}
		if _, enhancedOnly := enhancedOnlyInfoTypes[t]; enhancedOnly && cfg.Tier != domain.TierEnhanced {
			return nil, apierr.New(apierr.KindValidation, fmt.Sprintf("information type %s requires enhanced tier", t)).WithDetail("code", "enhanced_tier_required")
		}
	}

	var warnings []ConfigWarning
	if !hasIdentity {
		warnings = append(warnings, ConfigWarning{Code: "IDENTITY_EXCLUDED", Message: "screening excludes identity verification"})
	}
	if !hasSanctions {
		warnings = append(warnings, ConfigWarning{Code: "SANCTIONS_EXCLUDED", Message: "screening excludes sanctions screening"})
	}
	return warnings, nil
}
