package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/inventory"
	"github.com/azgovernor/azgovernor/internal/repository/sqlite"
	"github.com/azgovernor/azgovernor/migrations"
)

// NewTestDB creates a migrated in-memory SQLite database for testing.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := sqlite.RunMigrations(db, migrations.GetFS()); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// Resource builds a test resource with sensible defaults. Options mutate the
// resource before it is returned.
func Resource(name, resourceType string, opts ...func(*inventory.AzureResource)) inventory.AzureResource {
	r := inventory.AzureResource{
		ID:             fmt.Sprintf("/subscriptions/sub-1/resourceGroups/rg-test/providers/%s/%s", resourceType, name),
		Name:           name,
		Type:           resourceType,
		ResourceGroup:  "rg-test",
		Location:       "eastus",
		SubscriptionID: "sub-1",
		CreatedAt:      time.Now().UTC().AddDate(0, -1, 0),
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithTags sets the resource tags.
func WithTags(tags map[string]string) func(*inventory.AzureResource) {
	return func(r *inventory.AzureResource) { r.Tags = tags }
}

// WithProperties sets the resource properties.
func WithProperties(props map[string]any) func(*inventory.AzureResource) {
	return func(r *inventory.AzureResource) { r.Properties = props }
}

// WithProvisioningState sets the provisioningState property.
func WithProvisioningState(state string) func(*inventory.AzureResource) {
	return func(r *inventory.AzureResource) {
		if r.Properties == nil {
			r.Properties = map[string]any{}
		}
		r.Properties["provisioningState"] = state
	}
}

// Inventory bundles resources into a snapshot for one subscription.
func Inventory(resources ...inventory.AzureResource) *inventory.ResourceInventory {
	return &inventory.ResourceInventory{
		CustomerID:      "test-customer",
		Resources:       resources,
		SubscriptionIDs: []string{"sub-1"},
		CollectedAt:     time.Now().UTC(),
	}
}
