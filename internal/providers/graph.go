package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	"github.com/azgovernor/azgovernor/internal/domain/inventory"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
)

const (
	graphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope   = "https://graph.microsoft.com/.default"

	armBaseURL = "https://management.azure.com"
	armScope   = "https://management.azure.com/.default"
)

// GraphDirectoryProvider implements inventory.DirectoryProvider against the
// Microsoft Graph REST API. Snapshots are cached for a TTL so the identity
// analyzers sharing one provider do not refetch the directory per sub-check.
type GraphDirectoryProvider struct {
	cred          azcore.TokenCredential
	tenantID      string
	subscriptions []string
	client        *http.Client
	baseURL       string
	armURL        string
	ttl           time.Duration
	logger        *logger.Logger

	mu        sync.Mutex
	cached    *inventory.DirectorySnapshot
	fetchedAt time.Time
}

// NewGraphDirectoryProvider creates the Graph-backed directory provider.
// subscriptions scope the role assignment collection.
func NewGraphDirectoryProvider(creds AzureCredentials, subscriptions []string, ttl time.Duration, log *logger.Logger) (*GraphDirectoryProvider, error) {
	cred, err := creds.TokenCredential()
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return &GraphDirectoryProvider{
		cred:          cred,
		tenantID:      creds.TenantID,
		subscriptions: subscriptions,
		client:        &http.Client{Timeout: 30 * time.Second},
		baseURL:       graphBaseURL,
		armURL:        armBaseURL,
		ttl:           ttl,
		logger:        log,
	}, nil
}

// FetchDirectory returns the cached snapshot when fresh, otherwise collects
// users, service principals, role assignments, and conditional access
// policies in one pass.
func (p *GraphDirectoryProvider) FetchDirectory(ctx context.Context) (*inventory.DirectorySnapshot, error) {
	p.mu.Lock()
	if p.cached != nil && time.Since(p.fetchedAt) < p.ttl {
		snap := p.cached
		p.mu.Unlock()
		return snap, nil
	}
	p.mu.Unlock()

	start := time.Now()
	snap := &inventory.DirectorySnapshot{
		TenantID:    p.tenantID,
		CollectedAt: start.UTC(),
	}

	if err := p.collectUsers(ctx, snap); err != nil {
		return nil, fmt.Errorf("graph users: %w", err)
	}
	if err := p.collectServicePrincipals(ctx, snap); err != nil {
		return nil, fmt.Errorf("graph service principals: %w", err)
	}
	if err := p.collectConditionalAccess(ctx, snap); err != nil {
		return nil, fmt.Errorf("graph conditional access: %w", err)
	}
	if err := p.collectRoleAssignments(ctx, snap); err != nil {
		return nil, fmt.Errorf("arm role assignments: %w", err)
	}

	p.mu.Lock()
	p.cached = snap
	p.fetchedAt = time.Now()
	p.mu.Unlock()

	p.logger.WithFields(map[string]interface{}{
		"users":              len(snap.Users),
		"service_principals": len(snap.ServicePrincipals),
		"ca_policies":        len(snap.ConditionalAccessPolicies),
		"duration":           time.Since(start).String(),
	}).Info("Directory snapshot collected")

	return snap, nil
}

// graphUser mirrors the subset of the Graph user object the analyzers need.
type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	AccountEnabled    bool   `json:"accountEnabled"`
	UserType          string `json:"userType"`
	SignInActivity    *struct {
		LastSignInDateTime *time.Time `json:"lastSignInDateTime"`
	} `json:"signInActivity"`
}

func (p *GraphDirectoryProvider) collectUsers(ctx context.Context, snap *inventory.DirectorySnapshot) error {
	url := p.baseURL + "/users?$select=id,displayName,userPrincipalName,accountEnabled,userType,signInActivity"
	for url != "" {
		var page struct {
			Value    []graphUser `json:"value"`
			NextLink string      `json:"@odata.nextLink"`
		}
		if err := p.get(ctx, url, &page); err != nil {
			return err
		}
		for _, u := range page.Value {
			user := inventory.DirectoryUser{
				ID:             u.ID,
				DisplayName:    u.DisplayName,
				UserPrincipal:  u.UserPrincipalName,
				AccountEnabled: u.AccountEnabled,
				IsGuest:        strings.EqualFold(u.UserType, "Guest"),
			}
			if u.SignInActivity != nil {
				user.LastSignInAt = u.SignInActivity.LastSignInDateTime
			}
			snap.Users = append(snap.Users, user)
		}
		url = page.NextLink
	}
	return nil
}

// graphServicePrincipal mirrors the subset of the Graph servicePrincipal
// object the analyzers need.
type graphServicePrincipal struct {
	ID                  string `json:"id"`
	AppID               string `json:"appId"`
	DisplayName         string `json:"displayName"`
	AccountEnabled      bool   `json:"accountEnabled"`
	PasswordCredentials []struct {
		EndDateTime *time.Time `json:"endDateTime"`
	} `json:"passwordCredentials"`
	Owners []struct {
		ID string `json:"id"`
	} `json:"owners"`
}

func (p *GraphDirectoryProvider) collectServicePrincipals(ctx context.Context, snap *inventory.DirectorySnapshot) error {
	url := p.baseURL + "/servicePrincipals?$select=id,appId,displayName,accountEnabled,passwordCredentials&$expand=owners($select=id)"
	for url != "" {
		var page struct {
			Value    []graphServicePrincipal `json:"value"`
			NextLink string                  `json:"@odata.nextLink"`
		}
		if err := p.get(ctx, url, &page); err != nil {
			return err
		}
		for _, sp := range page.Value {
			out := inventory.ServicePrincipal{
				ID:             sp.ID,
				AppID:          sp.AppID,
				DisplayName:    sp.DisplayName,
				AccountEnabled: sp.AccountEnabled,
				OwnerCount:     len(sp.Owners),
			}
			// The soonest-expiring credential drives the expiry check.
			for _, c := range sp.PasswordCredentials {
				if c.EndDateTime == nil {
					continue
				}
				if out.CredentialExpires == nil || c.EndDateTime.Before(*out.CredentialExpires) {
					out.CredentialExpires = c.EndDateTime
				}
			}
			snap.ServicePrincipals = append(snap.ServicePrincipals, out)
		}
		url = page.NextLink
	}
	return nil
}

func (p *GraphDirectoryProvider) collectConditionalAccess(ctx context.Context, snap *inventory.DirectorySnapshot) error {
	url := p.baseURL + "/identity/conditionalAccess/policies"
	for url != "" {
		var page struct {
			Value []struct {
				ID          string `json:"id"`
				DisplayName string `json:"displayName"`
				State       string `json:"state"`
				Conditions  struct {
					Users struct {
						IncludeUsers []string `json:"includeUsers"`
					} `json:"users"`
				} `json:"conditions"`
				GrantControls *struct {
					BuiltInControls []string `json:"builtInControls"`
				} `json:"grantControls"`
			} `json:"value"`
			NextLink string `json:"@odata.nextLink"`
		}
		if err := p.get(ctx, url, &page); err != nil {
			return err
		}
		for _, raw := range page.Value {
			pol := inventory.ConditionalAccessPolicy{
				ID:          raw.ID,
				DisplayName: raw.DisplayName,
				State:       raw.State,
				UserScope:   "selected",
			}
			for _, u := range raw.Conditions.Users.IncludeUsers {
				if strings.EqualFold(u, "All") {
					pol.UserScope = "all"
				}
			}
			if raw.GrantControls != nil {
				pol.GrantControls = raw.GrantControls.BuiltInControls
			}
			snap.ConditionalAccessPolicies = append(snap.ConditionalAccessPolicies, pol)
		}
		url = page.NextLink
	}
	return nil
}

// collectRoleAssignments lists role assignments per subscription through the
// ARM REST API and resolves role definition IDs to role names. Guest status
// is derived from the user snapshot collected earlier, so users must be
// collected first.
func (p *GraphDirectoryProvider) collectRoleAssignments(ctx context.Context, snap *inventory.DirectorySnapshot) error {
	guests := map[string]bool{}
	for _, u := range snap.Users {
		if u.IsGuest {
			guests[u.ID] = true
		}
	}

	roleNames := map[string]string{}
	for _, sub := range p.subscriptions {
		defsURL := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.Authorization/roleDefinitions?api-version=2022-04-01", p.armURL, sub)
		var defs struct {
			Value []struct {
				ID         string `json:"id"`
				Properties struct {
					RoleName string `json:"roleName"`
				} `json:"properties"`
			} `json:"value"`
		}
		if err := p.getScoped(ctx, defsURL, armScope, &defs); err != nil {
			return err
		}
		for _, d := range defs.Value {
			roleNames[strings.ToLower(d.ID)] = d.Properties.RoleName
		}

		raURL := fmt.Sprintf("%s/subscriptions/%s/providers/Microsoft.Authorization/roleAssignments?api-version=2022-04-01", p.armURL, sub)
		var ras struct {
			Value []struct {
				Properties struct {
					PrincipalID      string `json:"principalId"`
					PrincipalType    string `json:"principalType"`
					RoleDefinitionID string `json:"roleDefinitionId"`
					Scope            string `json:"scope"`
				} `json:"properties"`
			} `json:"value"`
		}
		if err := p.getScoped(ctx, raURL, armScope, &ras); err != nil {
			return err
		}
		for _, ra := range ras.Value {
			snap.RoleAssignments = append(snap.RoleAssignments, inventory.RoleAssignment{
				PrincipalID:   ra.Properties.PrincipalID,
				PrincipalType: ra.Properties.PrincipalType,
				RoleName:      roleNames[strings.ToLower(ra.Properties.RoleDefinitionID)],
				Scope:         ra.Properties.Scope,
				IsGuest:       guests[ra.Properties.PrincipalID],
			})
		}
	}
	return nil
}

// get performs one authenticated Graph GET and decodes the JSON response.
func (p *GraphDirectoryProvider) get(ctx context.Context, url string, out any) error {
	return p.getScoped(ctx, url, graphScope, out)
}

// getScoped performs an authenticated GET against either API surface.
func (p *GraphDirectoryProvider) getScoped(ctx context.Context, url, scope string, out any) error {
	token, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
