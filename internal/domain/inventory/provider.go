package inventory

import (
	"context"
	"time"
)

// Provider fetches a resource inventory snapshot for a set of subscriptions.
// A failure here is fatal to an assessment since no category can run without
// the inventory.
type Provider interface {
	FetchInventory(ctx context.Context, subscriptionIDs []string) (*ResourceInventory, error)
}

// DirectoryUser is a user account from the tenant directory.
type DirectoryUser struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	UserPrincipal  string     `json:"user_principal_name"`
	AccountEnabled bool       `json:"account_enabled"`
	IsGuest        bool       `json:"is_guest"`
	LastSignInAt   *time.Time `json:"last_sign_in_at,omitempty"`
}

// ServicePrincipal is an enterprise application registration.
type ServicePrincipal struct {
	ID                string     `json:"id"`
	DisplayName       string     `json:"display_name"`
	AppID             string     `json:"app_id"`
	AccountEnabled    bool       `json:"account_enabled"`
	OwnerCount        int        `json:"owner_count"`
	CredentialExpires *time.Time `json:"credential_expires,omitempty"`
}

// RoleAssignment maps a principal to a role at a scope.
type RoleAssignment struct {
	PrincipalID   string `json:"principal_id"`
	PrincipalType string `json:"principal_type"` // User, Group, ServicePrincipal
	RoleName      string `json:"role_name"`
	Scope         string `json:"scope"`
	IsGuest       bool   `json:"is_guest"`
}

// ConditionalAccessPolicy is a tenant conditional access policy.
type ConditionalAccessPolicy struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	State         string   `json:"state"` // enabled, disabled, enabledForReportingButNotEnforced
	GrantControls []string `json:"grant_controls,omitempty"`
	UserScope     string   `json:"user_scope"` // all or selected
}

// DirectorySnapshot bundles the directory objects the identity analyzers
// inspect. Like ResourceInventory it is read-only once fetched.
type DirectorySnapshot struct {
	TenantID                  string                    `json:"tenant_id"`
	Users                     []DirectoryUser           `json:"users"`
	ServicePrincipals         []ServicePrincipal        `json:"service_principals"`
	RoleAssignments           []RoleAssignment          `json:"role_assignments"`
	ConditionalAccessPolicies []ConditionalAccessPolicy `json:"conditional_access_policies"`
	CollectedAt               time.Time                 `json:"collected_at"`
}

// DirectoryProvider fetches directory objects scoped to the tenant. A failure
// is non-fatal to the assessment: the identity analyzers that depend on it
// report an analyzer error and are excluded from scoring.
type DirectoryProvider interface {
	FetchDirectory(ctx context.Context) (*DirectorySnapshot, error)
}
