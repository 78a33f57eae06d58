package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// Options is the per-run input every analyzer receives alongside the
// inventory: the request-level tuning plus the process-level weight
// configuration.
type Options struct {
	Request assessment.Options
	Config  *Config
}

// Error signals that one category could not be evaluated. It is non-fatal to
// the overall assessment: the category is excluded from scoring and surfaced
// as an unavailable category.
type Error struct {
	Category assessment.Category
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analyzer %s: %v", e.Category, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError wraps a cause as a category analyzer error.
func NewError(category assessment.Category, cause error) *Error {
	return &Error{Category: category, Cause: cause}
}

// Node is one unit of analysis work: either a leaf analyzer for a single
// concern or a composite that aggregates several children under one
// governance domain. Nesting is transparent to callers because composites
// score themselves with the same aggregation rule the orchestrator uses.
type Node interface {
	// Category identifies the result slot this node fills.
	Category() assessment.Category

	// Analyze evaluates the node against the shared read-only inventory.
	// Implementations must not mutate the inventory, must honor ctx
	// cancellation, and must be deterministic for fixed inputs. A returned
	// *Error excludes the category from scoring without failing siblings.
	Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error)
}

// Outcome is the result of running one node: exactly one of Result or Err is
// set. Expected, non-fatal analyzer failures travel as values rather than
// panics or aborts.
type Outcome struct {
	Category assessment.Category
	Result   *assessment.CategoryResult
	Err      *Error
}

// Run executes a node and folds any failure into an Outcome. Errors that are
// not already analyzer errors are wrapped under the node's category.
func Run(ctx context.Context, n Node, inv *inventory.ResourceInventory, opts Options) Outcome {
	res, err := n.Analyze(ctx, inv, opts)
	if err != nil {
		if ae, ok := err.(*Error); ok {
			return Outcome{Category: n.Category(), Err: ae}
		}
		return Outcome{Category: n.Category(), Err: NewError(n.Category(), err)}
	}
	return Outcome{Category: n.Category(), Result: res}
}

// filterResources applies the request's resource-type include/exclude filters.
// Exclude wins over include. The returned slice shares backing storage with
// the inventory and must be treated as read-only.
func filterResources(inv *inventory.ResourceInventory, opts Options) []inventory.AzureResource {
	include := opts.Request.IncludeResourceTypes
	exclude := opts.Request.ExcludeResourceTypes
	if len(include) == 0 && len(exclude) == 0 {
		return inv.Resources
	}

	matches := func(set []string, t string) bool {
		for _, s := range set {
			if strings.EqualFold(s, t) {
				return true
			}
		}
		return false
	}

	var out []inventory.AzureResource
	for _, r := range inv.Resources {
		if matches(exclude, r.Type) {
			continue
		}
		if len(include) > 0 && !matches(include, r.Type) {
			continue
		}
		out = append(out, r)
	}
	return out
}
