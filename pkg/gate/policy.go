package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Policy is an optional CEL admission predicate composed after the
// built-in checks. Operators use it for deployment-specific rules
// ("deny actor X", "providers only during office hours") without code changes.
type Policy struct {
	mu    sync.RWMutex
	env   *cel.Env
	cache map[string]cel.Program
	expr  string
}

// NewPolicy compiles nothing yet; SetExpression installs the rule. The CEL
// environment exposes actor, provider, paused, and now.
func NewPolicy() (*Policy, error) {
	env, err := cel.NewEnv(
		cel.Variable("actor", cel.StringType),
		cel.Variable("provider", cel.BoolType),
		cel.Variable("paused", cel.BoolType),
		cel.Variable("now", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &Policy{env: env, cache: make(map[string]cel.Program)}, nil
}

// SetExpression installs (and eagerly compiles) the policy expression.
// An empty expression disables the policy.
func (p *Policy) SetExpression(expr string) error {
	if expr == "" {
		p.mu.Lock()
		p.expr = ""
		p.mu.Unlock()
		return nil
	}
	if _, err := p.program(expr); err != nil {
		return err
	}
	p.mu.Lock()
	p.expr = expr
	p.mu.Unlock()
	return nil
}

// Admit evaluates the installed expression. No expression admits everyone.
// A policy that evaluates false or errors denies with ErrNotAuthorized;
// the gate fails closed on broken expressions.
func (p *Policy) Admit(now time.Time, cfg contracts.ProtocolConfig, actor contracts.ActorState) error {
	p.mu.RLock()
	expr := p.expr
	p.mu.RUnlock()
	if expr == "" {
		return nil
	}

	prg, err := p.program(expr)
	if err != nil {
		return fmt.Errorf("admission policy: %w", contracts.ErrNotAuthorized)
	}
	out, _, err := prg.Eval(map[string]any{
		"actor":    actor.Actor,
		"provider": actor.IsProvider,
		"paused":   cfg.Paused,
		"now":      now,
	})
	if err != nil {
		return fmt.Errorf("admission policy: %w", contracts.ErrNotAuthorized)
	}
	allowed, ok := out.Value().(bool)
	if !ok || !allowed {
		return fmt.Errorf("admission policy denied actor %q: %w", actor.Actor, contracts.ErrNotAuthorized)
	}
	return nil
}

func (p *Policy) program(expr string) (cel.Program, error) {
	p.mu.RLock()
	prg, hit := p.cache[expr]
	p.mu.RUnlock()
	if hit {
		return prg, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prg, hit = p.cache[expr]; hit {
		return prg, nil
	}
	ast, issues := p.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := p.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	p.cache[expr] = prg
	return prg, nil
}
