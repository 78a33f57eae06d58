package analyzer

import (
	"context"
	"strings"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// CostAnalyzer flags resources that accrue cost without delivering value:
// unattached disks, orphaned public IPs, and stopped-but-allocated VMs.
type CostAnalyzer struct{}

// NewCostAnalyzer creates the cost hygiene analyzer.
func NewCostAnalyzer() *CostAnalyzer {
	return &CostAnalyzer{}
}

func (a *CostAnalyzer) Category() assessment.Category {
	return assessment.CategoryCost
}

func (a *CostAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		switch strings.ToLower(r.Type) {
		case "microsoft.compute/disks", "microsoft.network/publicipaddresses", "microsoft.compute/virtualmachines":
			applicable = append(applicable, r)
		}
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(applicable),
		Metrics:        map[string]float64{},
	}
	if len(applicable) == 0 {
		return result, nil
	}

	flagged := 0
	for _, r := range applicable {
		switch strings.ToLower(r.Type) {
		case "microsoft.compute/disks":
			if strings.EqualFold(r.PropertyString("diskState"), "Unattached") {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityMedium,
					Issue:           "Managed disk is not attached to any virtual machine",
					Recommendation:  "Delete the disk or snapshot it and remove it to stop the ongoing storage charge",
					EstimatedEffort: "low",
				})
			}
		case "microsoft.network/publicipaddresses":
			if r.PropertyString("ipConfigurationId") == "" {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityLow,
					Issue:           "Public IP address is not associated with any network interface or load balancer",
					Recommendation:  "Release the unused public IP address",
					EstimatedEffort: "low",
				})
			}
		case "microsoft.compute/virtualmachines":
			if strings.EqualFold(r.PropertyString("powerState"), "VM stopped") {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityMedium,
					Issue:           "Virtual machine is stopped but still allocated and billing for compute",
					Recommendation:  "Deallocate the virtual machine so compute charges stop, or delete it if no longer needed",
					EstimatedEffort: "low",
				})
			}
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-flagged) / float64(len(applicable)) * 100)
	result.Metrics["wasteful_resources"] = float64(flagged)
	return result, nil
}

// DependencyAnalyzer flags resources whose upstream dependency is gone:
// network interfaces without a virtual machine and NSGs attached to nothing.
type DependencyAnalyzer struct{}

// NewDependencyAnalyzer creates the dependency hygiene analyzer.
func NewDependencyAnalyzer() *DependencyAnalyzer {
	return &DependencyAnalyzer{}
}

func (a *DependencyAnalyzer) Category() assessment.Category {
	return assessment.CategoryDependency
}

func (a *DependencyAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		switch strings.ToLower(r.Type) {
		case "microsoft.network/networkinterfaces", "microsoft.network/networksecuritygroups":
			applicable = append(applicable, r)
		}
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(applicable),
		Metrics:        map[string]float64{},
	}
	if len(applicable) == 0 {
		return result, nil
	}

	orphaned := 0
	for _, r := range applicable {
		switch strings.ToLower(r.Type) {
		case "microsoft.network/networkinterfaces":
			if r.PropertyString("virtualMachineId") == "" {
				orphaned++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityLow,
					Issue:           "Network interface is not attached to any virtual machine",
					Recommendation:  "Delete the orphaned network interface",
					EstimatedEffort: "low",
				})
			}
		case "microsoft.network/networksecuritygroups":
			if r.PropertyString("attachedTo") == "" {
				orphaned++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityLow,
					Issue:           "Network security group is not associated with any subnet or network interface",
					Recommendation:  "Remove the unused network security group to reduce configuration sprawl",
					EstimatedEffort: "low",
				})
			}
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-orphaned) / float64(len(applicable)) * 100)
	result.Metrics["orphaned_resources"] = float64(orphaned)
	return result, nil
}
