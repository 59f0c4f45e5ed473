package finance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// ConditionEvaluator compiles and caches CEL template conditions.
// It is safe for concurrent use.
type ConditionEvaluator struct {
	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewConditionEvaluator creates an evaluator whose expressions see a single
// `order` map with keys id, total, subtotal, shipping, gateway and channel.
func NewConditionEvaluator() (*ConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("order", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &ConditionEvaluator{
		env:      env,
		prgCache: make(map[string]cel.Program),
	}, nil
}

// Match evaluates expr against ctx. Non-boolean results are errors.
func (c *ConditionEvaluator) Match(expr string, ctx OrderContext) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{"order": conditionInput(ctx)})
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool", expr)
	}
	return val, nil
}

func (c *ConditionEvaluator) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.prgCache[expr]; hit {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := c.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	c.prgCache[expr] = prg
	return prg, nil
}

// conditionInput exposes amounts as doubles; CEL has no decimal type.
func conditionInput(ctx OrderContext) map[string]any {
	return map[string]any{
		"id":       ctx.OrderID,
		"total":    OrderTotalOrFallback(ctx).InexactFloat64(),
		"subtotal": SubtotalOrZero(ctx).InexactFloat64(),
		"shipping": ShippingRevenueOrZero(ctx).InexactFloat64(),
		"gateway":  ctx.PaymentGateway,
		"channel":  ctx.Channel,
	}
}
