package analyzer

import (
	"context"
	"strings"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// BackupCoverageAnalyzer checks that virtual machines are protected by a
// backup policy.
type BackupCoverageAnalyzer struct{}

func NewBackupCoverageAnalyzer() *BackupCoverageAnalyzer {
	return &BackupCoverageAnalyzer{}
}

func (a *BackupCoverageAnalyzer) Category() assessment.Category {
	return assessment.CategoryBackupCoverage
}

func (a *BackupCoverageAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		if strings.EqualFold(r.Type, "Microsoft.Compute/virtualMachines") {
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

	unprotected := 0
	for _, r := range applicable {
		enabled, ok := r.PropertyBool("backupEnabled")
		if (ok && enabled) || r.PropertyString("backupPolicyId") != "" {
			continue
		}
		unprotected++
		result.Findings = append(result.Findings, assessment.Finding{
			Category:        a.Category(),
			ResourceID:      r.ID,
			ResourceName:    r.Name,
			ResourceType:    r.Type,
			Severity:        assessment.SeverityHigh,
			Issue:           "Virtual machine is not protected by any backup policy",
			Recommendation:  "Enroll the virtual machine in a Recovery Services vault backup policy",
			EstimatedEffort: "low",
		})
	}

	result.Score = ScoreOf(float64(len(applicable)-unprotected) / float64(len(applicable)) * 100)
	result.Metrics["unprotected_vms"] = float64(unprotected)
	return result, nil
}

// RecoveryConfigAnalyzer checks disaster recovery configuration: vault
// storage redundancy and SQL geo-backup.
type RecoveryConfigAnalyzer struct{}

func NewRecoveryConfigAnalyzer() *RecoveryConfigAnalyzer {
	return &RecoveryConfigAnalyzer{}
}

func (a *RecoveryConfigAnalyzer) Category() assessment.Category {
	return assessment.CategoryRecoveryConfig
}

func (a *RecoveryConfigAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		switch strings.ToLower(r.Type) {
		case "microsoft.recoveryservices/vaults", "microsoft.sql/servers/databases":
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
		case "microsoft.recoveryservices/vaults":
			if !strings.EqualFold(r.PropertyString("storageModelType"), "GeoRedundant") {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityMedium,
					Issue:           "Recovery Services vault does not use geo-redundant storage",
					Recommendation:  "Switch the vault storage replication to geo-redundant so backups survive a regional outage",
					EstimatedEffort: "medium",
				})
			}
		case "microsoft.sql/servers/databases":
			if geo, ok := r.PropertyBool("geoBackupEnabled"); ok && !geo {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityMedium,
					Issue:           "SQL database has geo-redundant backup disabled",
					Recommendation:  "Enable geo-redundant backup storage for the database",
					EstimatedEffort: "low",
				})
			}
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-flagged) / float64(len(applicable)) * 100)
	result.Metrics["at_risk_resources"] = float64(flagged)
	return result, nil
}
