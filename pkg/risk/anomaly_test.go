package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/risk"
)

func TestAnomalyDetector_NoInconsistenciesIsNone(t *testing.T) {
	d := risk.NewAnomalyDetector()

	result := d.Detect(nil, nil)

	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, risk.DeceptionNone, result.Level)
	assert.Empty(t, result.Signals)
}

func TestAnomalyDetector_CredentialInflationSignal(t *testing.T) {
	d := risk.NewAnomalyDetector()

	incs := []domain.Inconsistency{
		{
			InfoType:    domain.InformationType("EDUCATION"),
			Category:    "CREDENTIAL_INFLATION",
			Description: "claimed degree not found",
			FactA:       domain.Fact{Value: "BS Computer Science", Confidence: 0.9},
			FactB:       domain.Fact{Value: "no degree on file", Confidence: 0.8},
		},
	}

	result := d.Detect(map[domain.InformationType][]domain.Fact{"EDUCATION": {{}, {}}}, incs)

	assert.Contains(t, anomalyTypes(result.Signals), "CREDENTIAL_INFLATION")
	assert.Greater(t, result.Score, 0.0)
}

func TestAnomalyDetector_SystematicPatternAcrossManyConflicts(t *testing.T) {
	d := risk.NewAnomalyDetector()

	var incs []domain.Inconsistency
	for i := 0; i < 4; i++ {
		incs = append(incs, domain.Inconsistency{
			InfoType:    domain.InformationType("EMPLOYMENT"),
			Category:    "EMPLOYMENT_GAP_HIDDEN",
			Description: "undisclosed gap",
			FactA:       domain.Fact{Value: "continuous employment", Confidence: 0.9},
			FactB:       domain.Fact{Value: "gap found", Confidence: 0.2},
		})
	}

	result := d.Detect(nil, incs)

	assert.Contains(t, anomalyTypes(result.Signals), "SYSTEMATIC_INCONSISTENCY")
}

func TestAnomalyDetector_ScoreCappedAtOne(t *testing.T) {
	d := risk.NewAnomalyDetector()

	var incs []domain.Inconsistency
	for i := 0; i < 20; i++ {
		incs = append(incs, domain.Inconsistency{
			InfoType:    domain.InformationType("EMPLOYMENT"),
			Category:    "EMPLOYMENT_GAP_HIDDEN",
			FactA:       domain.Fact{Value: "A", Confidence: 0.9},
			FactB:       domain.Fact{Value: "B", Confidence: 0.1},
		})
	}

	result := d.Detect(nil, incs)

	assert.LessOrEqual(t, result.Score, 1.0)
}

func anomalyTypes(signals []risk.AnomalySignal) []string {
	var out []string
	for _, s := range signals {
		out = append(out, s.Type)
	}
	return out
}
