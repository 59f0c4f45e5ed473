package finance

import (
	"log/slog"
	"sync"
)

// Evaluator turns cost templates into variable costs for an order.
// The zero value is not usable; construct with NewEvaluator.
type Evaluator struct {
	conditions *ConditionEvaluator
	logger     *slog.Logger
}

// NewEvaluator creates an evaluator. A nil logger uses slog.Default().
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{logger: logger.With("component", "finance.evaluator")}
	conds, err := NewConditionEvaluator()
	if err != nil {
		// Templates with a condition are skipped when no CEL environment exists.
		e.logger.Error("condition evaluator unavailable", "error", err)
	} else {
		e.conditions = conds
	}
	return e
}

var defaultEvaluator = sync.OnceValue(func() *Evaluator { return NewEvaluator(nil) })

// Evaluate runs the shared default evaluator.
func Evaluate(templates []CostTemplate, ctx OrderContext) []VariableCost {
	return defaultEvaluator().Evaluate(templates, ctx)
}

// Evaluate returns one VariableCost per applicable template, in template
// order. Templates that are inert, filtered out, or compute to an amount
// <= 0 are skipped silently.
func (e *Evaluator) Evaluate(templates []CostTemplate, ctx OrderContext) []VariableCost {
	costs := make([]VariableCost, 0, len(templates))
	for _, t := range templates {
		if !e.applies(t, ctx) {
			continue
		}
		amount := TemplateAmount(t, ctx)
		if !amount.IsPositive() {
			continue
		}
		costs = append(costs, VariableCost{
			Type:         t.Type,
			TemplateName: t.Name,
			Amount:       amount,
		})
	}
	return costs
}

func (e *Evaluator) applies(t CostTemplate, ctx OrderContext) bool {
	if len(t.Lines) == 0 {
		return false
	}
	if !t.Type.Valid() {
		e.logger.Debug("template skipped: unknown cost type", "template", t.Name, "type", t.Type)
		return false
	}
	if !GatewayMatches(t.Config, ctx) || !ChannelMatches(t.Config, ctx) {
		return false
	}
	if t.Config == nil || t.Config.Condition == "" {
		return true
	}
	if e.conditions == nil {
		return false
	}
	ok, err := e.conditions.Match(t.Config.Condition, ctx)
	if err != nil {
		e.logger.Debug("template skipped: condition failed", "template", t.Name, "error", err)
		return false
	}
	return ok
}

// OrderCosts is the evaluation result for one order.
type OrderCosts struct {
	OrderID string         `json:"order_id,omitempty"`
	Costs   []VariableCost `json:"costs"`
	Totals  CostTotals     `json:"totals"`
}

// EvaluateOrders evaluates every order and returns the per-order results with
// the totals across all of them.
func (e *Evaluator) EvaluateOrders(templates []CostTemplate, orders []OrderContext) ([]OrderCosts, CostTotals) {
	results := make([]OrderCosts, 0, len(orders))
	all := make([]VariableCost, 0, len(orders)*len(templates))
	for _, o := range orders {
		costs := e.Evaluate(templates, o)
		results = append(results, OrderCosts{
			OrderID: o.OrderID,
			Costs:   costs,
			Totals:  Aggregate(costs),
		})
		all = append(all, costs...)
	}
	return results, Aggregate(all)
}
