package sar

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/veriscope/screening/pkg/domain"
)

// SchemaValidator validates a provider's normalized_data against a
// per-check-type JSON Schema before the Assessor touches it, grounded on
// the teacher's PolicyFirewall (core/pkg/firewall/firewall.go), which
// compiles and caches a santhosh-tekuri/jsonschema/v5 schema per tool name
// the same way this caches one per check type.
type SchemaValidator struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: make(map[string]*jsonschema.Schema)}
}

// LoadSchema compiles and registers the schema for checkType. schema is raw
// JSON Schema (draft 2020-12) text.
func (v *SchemaValidator) LoadSchema(checkType, schema string) error {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	url := fmt.Sprintf("https://screening.internal/schemas/%s.json", checkType)
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("sar: load schema for %s: %w", checkType, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("sar: compile schema for %s: %w", checkType, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.schemas[checkType] = compiled
	return nil
}

// Validate checks result.NormalizedData against checkType's schema. A
// check type with no registered schema passes through unvalidated — schema
// coverage is opt-in per provider integration, not a hard requirement.
func (v *SchemaValidator) Validate(checkType string, result domain.QueryResult) error {
	v.mu.RLock()
	schema, ok := v.schemas[checkType]
	v.mu.RUnlock()
	if !ok || result.NormalizedData == nil {
		return nil
	}
	if err := schema.Validate(result.NormalizedData); err != nil {
		return fmt.Errorf("sar: normalized_data failed schema validation for %s: %w", checkType, err)
	}
	return nil
}

// filterInvalid keeps every result but marks successful ones that fail
// schema validation FAILED, so the Executor's success-rate accounting and
// the Assessor both see an honest picture rather than silently skipped data.
func (v *SchemaValidator) filterInvalid(checkType string, results []domain.QueryResult) []domain.QueryResult {
	out := make([]domain.QueryResult, len(results))
	for i, r := range results {
		if r.Status == domain.StatusSuccess {
			if err := v.Validate(checkType, r); err != nil {
				r.Status = domain.StatusFailed
				r.Error = err.Error()
			}
		}
		out[i] = r
	}
	return out
}
