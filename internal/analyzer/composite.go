package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// Composite groups leaf analyzers under one governance domain and aggregates
// their results into a single domain-level result using the same scoring
// rule as the top-level orchestrator, so nesting depth is transparent to the
// caller.
type Composite struct {
	category     assessment.Category
	children     []Node
	childTimeout time.Duration
}

// NewComposite builds a meta-analyzer over the given children.
// childTimeout bounds each child's Analyze call; zero disables the bound.
func NewComposite(category assessment.Category, childTimeout time.Duration, children ...Node) *Composite {
	return &Composite{
		category:     category,
		children:     children,
		childTimeout: childTimeout,
	}
}

// Category returns the domain category this composite scores.
func (c *Composite) Category() assessment.Category {
	return c.category
}

// Children exposes the child nodes, for registry filtering by enabled
// category.
func (c *Composite) Children() []Node {
	return c.children
}

// Analyze runs the children and aggregates their non-nil scores with the
// shared weighted mean. A child error is recorded in the domain metrics as
// an unavailable sub-check but does not fail the domain; only when every
// child fails does the composite itself return an analyzer error.
func (c *Composite) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	result := &assessment.CategoryResult{
		Category: c.category,
		Metrics:  map[string]float64{},
	}

	var entries []WeightedScore
	var lastErr *Error
	ran, failed := 0, 0

	// Enabling the composite's own category enables every child.
	allChildren := opts.Request.CategoryEnabled(c.category) && containsCategory(opts.Request.EnabledCategories, c.category)

	for _, child := range c.children {
		if !allChildren && !opts.Request.CategoryEnabled(child.Category()) {
			continue
		}
		ran++

		childCtx := ctx
		var cancel context.CancelFunc
		if c.childTimeout > 0 {
			childCtx, cancel = context.WithTimeout(ctx, c.childTimeout)
		}
		outcome := Run(childCtx, child, inv, opts)
		if cancel != nil {
			cancel()
		}

		if outcome.Err != nil {
			failed++
			lastErr = outcome.Err
			continue
		}

		entries = append(entries, WeightedScore{
			Score:  outcome.Result.Score,
			Weight: opts.Config.WeightFor(outcome.Result.Category),
		})
		result.Findings = append(result.Findings, outcome.Result.Findings...)
		if outcome.Result.TotalResources > result.TotalResources {
			result.TotalResources = outcome.Result.TotalResources
		}
		for k, v := range outcome.Result.Metrics {
			result.Metrics[string(outcome.Result.Category)+"."+k] = v
		}
	}

	if ran == 0 {
		return nil, NewError(c.category, fmt.Errorf("no sub-checks enabled"))
	}
	if failed == ran {
		return nil, NewError(c.category, fmt.Errorf("all %d sub-checks failed: %v", ran, lastErr.Cause))
	}

	result.Score = Aggregate(entries)
	result.Metrics["unavailable_sub_checks"] = float64(failed)
	return result, nil
}

func containsCategory(set []assessment.Category, c assessment.Category) bool {
	for _, e := range set {
		if e == c {
			return true
		}
	}
	return false
}
