package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// paasTypes are the data-plane services checked for private endpoint and
// public network exposure.
var paasTypes = map[string]bool{
	"microsoft.storage/storageaccounts": true,
	"microsoft.sql/servers":             true,
	"microsoft.keyvault/vaults":         true,
	"microsoft.documentdb/databaseaccounts": true,
}

// NetworkSecurityAnalyzer inspects network security groups for open inbound
// rules and PaaS services for unrestricted public network access.
type NetworkSecurityAnalyzer struct{}

func NewNetworkSecurityAnalyzer() *NetworkSecurityAnalyzer {
	return &NetworkSecurityAnalyzer{}
}

func (a *NetworkSecurityAnalyzer) Category() assessment.Category {
	return assessment.CategoryNetworkSecurity
}

// managementPorts are ports whose exposure to the internet is critical.
var managementPorts = map[string]bool{"22": true, "3389": true}

func (a *NetworkSecurityAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		t := strings.ToLower(r.Type)
		if t == "microsoft.network/networksecuritygroups" || paasTypes[t] {
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
		if strings.EqualFold(r.Type, "Microsoft.Network/networkSecurityGroups") {
			if ports := openInboundPorts(&r); len(ports) > 0 {
				flagged++
				severity := assessment.SeverityHigh
				for _, p := range ports {
					if managementPorts[p] || p == "*" {
						severity = assessment.SeverityCritical
						break
					}
				}
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        severity,
					Issue:           fmt.Sprintf("Network security group allows inbound traffic from any source on ports: %s", strings.Join(ports, ", ")),
					Recommendation:  "Restrict the inbound rules to known source address ranges and close management ports to the internet",
					EstimatedEffort: "medium",
				})
			}
			continue
		}
		if strings.EqualFold(r.PropertyString("publicNetworkAccess"), "Enabled") {
			flagged++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityMedium,
				Issue:           "Service allows unrestricted public network access",
				Recommendation:  "Disable public network access or restrict it with network rules",
				EstimatedEffort: "medium",
			})
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-flagged) / float64(len(applicable)) * 100)
	result.Metrics["exposed_resources"] = float64(flagged)
	return result, nil
}

// openInboundPorts returns the destination ports of inbound allow rules open
// to any source, as recorded in the collected security rule property bag.
func openInboundPorts(r *inventory.AzureResource) []string {
	rules, ok := r.Properties["securityRules"].([]any)
	if !ok {
		return nil
	}
	var ports []string
	for _, raw := range rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		access, _ := rule["access"].(string)
		direction, _ := rule["direction"].(string)
		source, _ := rule["sourceAddressPrefix"].(string)
		port, _ := rule["destinationPortRange"].(string)
		if !strings.EqualFold(access, "Allow") || !strings.EqualFold(direction, "Inbound") {
			continue
		}
		if source == "*" || strings.EqualFold(source, "Internet") {
			ports = append(ports, port)
		}
	}
	return ports
}

// PrivateEndpointAnalyzer checks that data-plane services are reachable over
// private endpoints rather than the public endpoint.
type PrivateEndpointAnalyzer struct{}

func NewPrivateEndpointAnalyzer() *PrivateEndpointAnalyzer {
	return &PrivateEndpointAnalyzer{}
}

func (a *PrivateEndpointAnalyzer) Category() assessment.Category {
	return assessment.CategoryPrivateEndpoints
}

func (a *PrivateEndpointAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		if paasTypes[strings.ToLower(r.Type)] {
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
		connections, _ := r.Properties["privateEndpointConnections"].([]any)
		if len(connections) == 0 && !strings.EqualFold(r.PropertyString("publicNetworkAccess"), "Disabled") {
			unprotected++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityMedium,
				Issue:           "Service has no private endpoint and is reachable over its public endpoint",
				Recommendation:  "Add a private endpoint and disable public network access",
				EstimatedEffort: "medium",
			})
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-unprotected) / float64(len(applicable)) * 100)
	result.Metrics["publicly_reachable"] = float64(unprotected)
	return result, nil
}

// EncryptionAnalyzer checks encryption posture: HTTPS-only transfer on
// storage accounts, customer data encryption on disks, and transparent data
// encryption on SQL databases.
type EncryptionAnalyzer struct{}

func NewEncryptionAnalyzer() *EncryptionAnalyzer {
	return &EncryptionAnalyzer{}
}

func (a *EncryptionAnalyzer) Category() assessment.Category {
	return assessment.CategoryEncryption
}

func (a *EncryptionAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		switch strings.ToLower(r.Type) {
		case "microsoft.storage/storageaccounts", "microsoft.compute/disks", "microsoft.sql/servers/databases":
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
		case "microsoft.storage/storageaccounts":
			if httpsOnly, ok := r.PropertyBool("supportsHttpsTrafficOnly"); ok && !httpsOnly {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityHigh,
					Issue:           "Storage account permits unencrypted HTTP transfer",
					Recommendation:  "Enable the secure transfer required setting so only HTTPS traffic is accepted",
					EstimatedEffort: "low",
				})
			}
		case "microsoft.compute/disks":
			if r.PropertyString("encryptionType") == "" {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityMedium,
					Issue:           "Managed disk has no encryption configuration recorded",
					Recommendation:  "Enable server-side encryption with platform or customer managed keys",
					EstimatedEffort: "medium",
				})
			}
		case "microsoft.sql/servers/databases":
			if tde, ok := r.PropertyBool("transparentDataEncryption"); ok && !tde {
				flagged++
				result.Findings = append(result.Findings, assessment.Finding{
					Category:        a.Category(),
					ResourceID:      r.ID,
					ResourceName:    r.Name,
					ResourceType:    r.Type,
					Severity:        assessment.SeverityHigh,
					Issue:           "SQL database has transparent data encryption disabled",
					Recommendation:  "Enable transparent data encryption on the database",
					EstimatedEffort: "low",
				})
			}
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-flagged) / float64(len(applicable)) * 100)
	result.Metrics["unencrypted_resources"] = float64(flagged)
	return result, nil
}

// ThreatProtectionAnalyzer checks that advanced threat protection is enabled
// on storage accounts and SQL servers.
type ThreatProtectionAnalyzer struct{}

func NewThreatProtectionAnalyzer() *ThreatProtectionAnalyzer {
	return &ThreatProtectionAnalyzer{}
}

func (a *ThreatProtectionAnalyzer) Category() assessment.Category {
	return assessment.CategoryThreatProtection
}

func (a *ThreatProtectionAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		switch strings.ToLower(r.Type) {
		case "microsoft.storage/storageaccounts", "microsoft.sql/servers":
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
		enabled, ok := r.PropertyBool("advancedThreatProtectionEnabled")
		if !ok || !enabled {
			unprotected++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityMedium,
				Issue:           "Advanced threat protection is not enabled",
				Recommendation:  "Enable Microsoft Defender threat protection for this service",
				EstimatedEffort: "low",
			})
		}
	}

	result.Score = ScoreOf(float64(len(applicable)-unprotected) / float64(len(applicable)) * 100)
	result.Metrics["unprotected_resources"] = float64(unprotected)
	return result, nil
}
