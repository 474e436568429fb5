package risk

import (
	"sort"
	"time"

	"github.com/veriscope/screening/pkg/domain"
)

// PatternSignal is an auxiliary signal the Pattern Recognizer surfaces
// alongside the scored findings (spec §4.6): it may justify upgrading an
// adjacent finding's severity via a documented rule, but never re-enters
// the scorer arithmetic directly.
type PatternSignal struct {
	Type        string // ESCALATION, BURST_ACTIVITY
	Category    domain.Category
	Description string
}

const burstWindow = 30 * 24 * time.Hour
const burstThreshold = 3

// PatternRecognizer consumes Findings and surfaces escalation-over-time and
// burst-activity signals (spec §4.6).
type PatternRecognizer struct{}

func NewPatternRecognizer() *PatternRecognizer { return &PatternRecognizer{} }

func (p *PatternRecognizer) Detect(findings []domain.Finding) []PatternSignal {
	var signals []PatternSignal
	signals = append(signals, detectEscalation(findings)...)
	signals = append(signals, detectBurst(findings)...)
	return signals
}

// detectEscalation flags a category whose findings' severity strictly
// increases over time — each finding worse than the one before it,
// ordered by discovery date.
func detectEscalation(findings []domain.Finding) []PatternSignal {
	byCategory := groupByCategory(findings)

	var signals []PatternSignal
	for category, fs := range byCategory {
		if len(fs) < 2 {
			continue
		}
		sort.Slice(fs, func(i, j int) bool { return fs[i].DiscoveredAt.Before(fs[j].DiscoveredAt) })

		increasing := true
		for i := 1; i < len(fs); i++ {
			if fs[i].Severity <= fs[i-1].Severity {
				increasing = false
				break
			}
		}
		if increasing {
			signals = append(signals, PatternSignal{
				Type:        "ESCALATION",
				Category:    category,
				Description: "finding severity escalates over time within this category",
			})
		}
	}
	return signals
}

// detectBurst flags a category with burstThreshold or more findings
// discovered within burstWindow of each other.
func detectBurst(findings []domain.Finding) []PatternSignal {
	byCategory := groupByCategory(findings)

	var signals []PatternSignal
	for category, fs := range byCategory {
		if len(fs) < burstThreshold {
			continue
		}
		sort.Slice(fs, func(i, j int) bool { return fs[i].DiscoveredAt.Before(fs[j].DiscoveredAt) })

		for i := 0; i+burstThreshold-1 < len(fs); i++ {
			span := fs[i+burstThreshold-1].DiscoveredAt.Sub(fs[i].DiscoveredAt)
			if span <= burstWindow {
				signals = append(signals, PatternSignal{
					Type:        "BURST_ACTIVITY",
					Category:    category,
					Description: "multiple findings surfaced in a short window for this category",
				})
				break
			}
		}
	}
	return signals
}

func groupByCategory(findings []domain.Finding) map[domain.Category][]domain.Finding {
	out := make(map[domain.Category][]domain.Finding)
	for _, f := range findings {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}
