package sar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriscope/screening/pkg/domain"
	"github.com/veriscope/screening/pkg/sar"
)

const employmentSchema = `{
	"type": "object",
	"required": ["employer"],
	"properties": {
		"employer": {"type": "string"}
	}
}`

func TestSchemaValidator_ValidatesDataAgainstLoadedSchema(t *testing.T) {
	v := sar.NewSchemaValidator()
	require.NoError(t, v.LoadSchema("employment", employmentSchema))

	err := v.Validate("employment", domain.QueryResult{NormalizedData: map[string]any{"employer": "Acme"}})

	assert.NoError(t, err)
}

func TestSchemaValidator_MissingRequiredFieldFailsValidation(t *testing.T) {
	v := sar.NewSchemaValidator()
	require.NoError(t, v.LoadSchema("employment", employmentSchema))

	err := v.Validate("employment", domain.QueryResult{NormalizedData: map[string]any{"title": "Engineer"}})

	assert.Error(t, err)
}

func TestSchemaValidator_UnregisteredCheckTypePassesThroughUnvalidated(t *testing.T) {
	v := sar.NewSchemaValidator()

	err := v.Validate("unregistered", domain.QueryResult{NormalizedData: map[string]any{"anything": 1}})

	assert.NoError(t, err)
}

func TestSchemaValidator_NilNormalizedDataPassesThrough(t *testing.T) {
	v := sar.NewSchemaValidator()
	require.NoError(t, v.LoadSchema("employment", employmentSchema))

	err := v.Validate("employment", domain.QueryResult{NormalizedData: nil})

	assert.NoError(t, err)
}

func TestSchemaValidator_LoadSchemaRejectsInvalidJSON(t *testing.T) {
	v := sar.NewSchemaValidator()

	err := v.LoadSchema("broken", "{not valid json")

	assert.Error(t, err)
}
