package compliance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELEvaluator lets a tenant override a rule with a boolean CEL expression
// over {locale, check_type, role_category, tier} instead of a code change
// (spec §4.3), grounded on the teacher's PolicyEngine in
// core/pkg/governance/policy_engine.go: one cel.Env shared across compiled
// programs, keyed by an override id.
type CELEvaluator struct {
	mu        sync.RWMutex
	env       *cel.Env
	programs  map[string]cel.Program
	sources   map[string]string
}

// NewCELEvaluator builds the shared CEL environment with the four
// attributes every override expression may reference.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("locale", cel.StringType),
		cel.Variable("check_type", cel.StringType),
		cel.Variable("role_category", cel.StringType),
		cel.Variable("tier", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("compliance: create CEL env: %w", err)
	}

	return &CELEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
		sources:  make(map[string]string),
	}, nil
}

// LoadOverride compiles and registers a tenant's override expression under
// id (typically "<tenant_id>:<locale>:<check_type>"). The expression must
// evaluate to a bool.
func (e *CELEvaluator) LoadOverride(id, expr string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compliance: compile override %s: %w", id, issues.Err())
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return fmt.Errorf("compliance: build override program %s: %w", id, err)
	}

	e.programs[id] = prg
	e.sources[id] = expr
	return nil
}

// Evaluate runs a loaded override and returns its permitted verdict. A
// missing id or a non-bool/erroring result fails closed (permitted=false)
// so a broken override never silently grants access.
func (e *CELEvaluator) Evaluate(id string, locale Locale, checkType string, role, tier string) (permitted bool, ok bool) {
	e.mu.RLock()
	prg, exists := e.programs[id]
	e.mu.RUnlock()
	if !exists {
		return false, false
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"locale":        string(locale),
		"check_type":    checkType,
		"role_category": role,
		"tier":          tier,
	})
	if err != nil {
		return false, true
	}

	b, isBool := out.Value().(bool)
	if !isBool {
		return false, true
	}
	return b, true
}

// Definitions returns a copy of every loaded override's source, for
// diagnostics.
func (e *CELEvaluator) Definitions() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]string, len(e.sources))
	for k, v := range e.sources {
		out[k] = v
	}
	return out
}
