package compliance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/compliance"
)

func TestCELEvaluator_EvaluateUnknownIDReturnsNotOK(t *testing.T) {
	evaluator, err := compliance.NewCELEvaluator()
	require.NoError(t, err)

	permitted, ok := evaluator.Evaluate("missing", compliance.Default, "criminal", "STANDARD", "STANDARD")

	assert.False(t, ok)
	assert.False(t, permitted)
}

func TestCELEvaluator_NonBoolExpressionFailsClosed(t *testing.T) {
	evaluator, err := compliance.NewCELEvaluator()
	require.NoError(t, err)
	require.NoError(t, evaluator.LoadOverride("id", "check_type"))

	permitted, ok := evaluator.Evaluate("id", compliance.Default, "criminal", "STANDARD", "STANDARD")

	assert.True(t, ok)
	assert.False(t, permitted)
}

func TestCELEvaluator_LoadOverrideRejectsInvalidSyntax(t *testing.T) {
	evaluator, err := compliance.NewCELEvaluator()
	require.NoError(t, err)

	err = evaluator.LoadOverride("id", "role_category ==")
	assert.Error(t, err)
}

func TestCELEvaluator_EvaluateReferencesAllFourAttributes(t *testing.T) {
	evaluator, err := compliance.NewCELEvaluator()
	require.NoError(t, err)
	require.NoError(t, evaluator.LoadOverride("id", "locale == 'US' && check_type == 'criminal' && role_category == 'GOVERNMENT' && tier == 'ENHANCED'"))

	permitted, ok := evaluator.Evaluate("id", "US", "criminal", "GOVERNMENT", "ENHANCED")
	require.True(t, ok)
	assert.True(t, permitted)

	permitted, ok = evaluator.Evaluate("id", "US", "criminal", "STANDARD", "ENHANCED")
	require.True(t, ok)
	assert.False(t, permitted)
}

func TestCELEvaluator_DefinitionsReturnsLoadedSources(t *testing.T) {
	evaluator, err := compliance.NewCELEvaluator()
	require.NoError(t, err)
	require.NoError(t, evaluator.LoadOverride("id", "true"))

	defs := evaluator.Definitions()

	assert.Equal(t, "true", defs["id"])
}
