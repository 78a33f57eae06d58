package inventory

import (
	"strings"
	"time"
)

// AzureResource is a single resource from a collected inventory snapshot.
// Resources are immutable once collected; analyzers must treat them as
// read-only.
type AzureResource struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           string            `json:"type"` // e.g. "Microsoft.Compute/virtualMachines"
	ResourceGroup  string            `json:"resource_group"`
	Location       string            `json:"location"`
	SubscriptionID string            `json:"subscription_id"`
	Tags           map[string]string `json:"tags,omitempty"`
	Properties     map[string]any    `json:"properties,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// HasTag reports whether the resource carries a non-empty value for key.
// Tag keys are compared case-insensitively, matching ARM behavior.
func (r *AzureResource) HasTag(key string) bool {
	for k, v := range r.Tags {
		if strings.EqualFold(k, key) && v != "" {
			return true
		}
	}
	return false
}

// IsTagged reports whether the resource has at least one tag.
func (r *AzureResource) IsTagged() bool {
	return len(r.Tags) > 0
}

// PropertyString returns a string-typed property value, or "" when the
// property is absent or not a string.
func (r *AzureResource) PropertyString(key string) string {
	if v, ok := r.Properties[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// PropertyBool returns a bool-typed property value and whether it was present.
func (r *AzureResource) PropertyBool(key string) (bool, bool) {
	if v, ok := r.Properties[key]; ok {
		if b, ok := v.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// ResourceInventory is the immutable snapshot of cloud resources an
// assessment analyzes. The engine only ever reads it, so it is safe to share
// across concurrently running analyzers without locking.
type ResourceInventory struct {
	CustomerID      string          `json:"customer_id"`
	Resources       []AzureResource `json:"resources"`
	SubscriptionIDs []string        `json:"subscription_ids"`
	CollectedAt     time.Time       `json:"collected_at"`
}

// ByType groups resources by their fully qualified resource type.
func (inv *ResourceInventory) ByType() map[string][]AzureResource {
	groups := make(map[string][]AzureResource)
	for _, r := range inv.Resources {
		t := strings.ToLower(r.Type)
		groups[t] = append(groups[t], r)
	}
	return groups
}

// OfType returns the resources whose type matches any of the given types
// (case-insensitive).
func (inv *ResourceInventory) OfType(types ...string) []AzureResource {
	var out []AzureResource
	for _, r := range inv.Resources {
		for _, t := range types {
			if strings.EqualFold(r.Type, t) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// Len returns the number of resources in the snapshot.
func (inv *ResourceInventory) Len() int {
	return len(inv.Resources)
}
