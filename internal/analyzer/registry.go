package analyzer

import (
	"fmt"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// Registry maps assessment types to the analyzer nodes that serve them. The
// meta domains (security, identity, continuity) are composites built once at
// construction so the same node instances serve targeted and full runs.
type Registry struct {
	naming     Node
	tagging    Node
	cost       Node
	dependency Node
	security   *Composite
	identity   *Composite
	continuity *Composite
}

// NewRegistry builds the full analyzer tree. directory backs the identity
// sub-checks; childTimeout bounds each composite child run.
func NewRegistry(directory inventory.DirectoryProvider, childTimeout time.Duration) *Registry {
	return &Registry{
		naming:     NewNamingAnalyzer(),
		tagging:    NewTaggingAnalyzer(),
		cost:       NewCostAnalyzer(),
		dependency: NewDependencyAnalyzer(),
		security: NewComposite(assessment.CategorySecurity, childTimeout,
			NewNetworkSecurityAnalyzer(),
			NewPrivateEndpointAnalyzer(),
			NewEncryptionAnalyzer(),
			NewThreatProtectionAnalyzer(),
		),
		identity: NewComposite(assessment.CategoryIdentity, childTimeout,
			NewEnterpriseAppsAnalyzer(directory),
			NewStaleIdentitiesAnalyzer(directory),
			NewRBACAnalyzer(directory),
			NewConditionalAccessAnalyzer(directory),
		),
		continuity: NewComposite(assessment.CategoryBusinessContinuity, childTimeout,
			NewBackupCoverageAnalyzer(),
			NewRecoveryConfigAnalyzer(),
		),
	}
}

// Resolve returns the nodes an assessment type implies, filtered by the
// request's enabled categories. For composites the filter applies at the
// child level inside Analyze; a composite is dropped here only when none of
// its children are enabled.
func (r *Registry) Resolve(t assessment.Type, opts assessment.Options) ([]Node, error) {
	var nodes []Node
	switch t {
	case assessment.TypeNamingConvention:
		nodes = []Node{r.naming}
	case assessment.TypeTagging:
		nodes = []Node{r.tagging}
	case assessment.TypeCost:
		nodes = []Node{r.cost, r.dependency}
	case assessment.TypeSecurityPosture:
		nodes = []Node{r.security}
	case assessment.TypeIdentityAccess:
		nodes = []Node{r.identity}
	case assessment.TypeBusinessContinuity:
		nodes = []Node{r.continuity}
	case assessment.TypeFull:
		nodes = []Node{r.naming, r.tagging, r.cost, r.dependency, r.security, r.identity, r.continuity}
	default:
		return nil, fmt.Errorf("unknown assessment type %q", t)
	}

	var enabled []Node
	for _, n := range nodes {
		if c, ok := n.(*Composite); ok {
			if compositeEnabled(c, opts) {
				enabled = append(enabled, n)
			}
			continue
		}
		if opts.CategoryEnabled(n.Category()) {
			enabled = append(enabled, n)
		}
	}
	if len(enabled) == 0 {
		return nil, fmt.Errorf("no analyzer categories enabled for type %q", t)
	}
	return enabled, nil
}

// compositeEnabled reports whether the composite itself or any of its
// children is in the enabled set.
func compositeEnabled(c *Composite, opts assessment.Options) bool {
	if len(opts.EnabledCategories) == 0 {
		return true
	}
	for _, e := range opts.EnabledCategories {
		if e == c.Category() {
			return true
		}
		for _, child := range c.Children() {
			if e == child.Category() {
				return true
			}
		}
	}
	return false
}
