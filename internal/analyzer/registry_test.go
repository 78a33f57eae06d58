package analyzer

import (
	"testing"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/testutil"
)

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(&testutil.MockDirectoryProvider{}, 0)

	tests := []struct {
		name           string
		assessmentType assessment.Type
		opts           assessment.Options
		wantCount      int
		wantErr        bool
	}{
		{
			name:           "naming type resolves one node",
			assessmentType: assessment.TypeNamingConvention,
			wantCount:      1,
		},
		{
			name:           "cost type resolves cost and dependency",
			assessmentType: assessment.TypeCost,
			wantCount:      2,
		},
		{
			name:           "full type resolves the whole tree",
			assessmentType: assessment.TypeFull,
			wantCount:      7,
		},
		{
			name:           "unknown type",
			assessmentType: assessment.Type("bogus"),
			wantErr:        true,
		},
		{
			name:           "enabled categories filter leaves",
			assessmentType: assessment.TypeFull,
			opts: assessment.Options{
				EnabledCategories: []assessment.Category{assessment.CategoryNamingConvention},
			},
			wantCount: 1,
		},
		{
			name:           "child category keeps its composite",
			assessmentType: assessment.TypeFull,
			opts: assessment.Options{
				EnabledCategories: []assessment.Category{assessment.CategoryEncryption},
			},
			wantCount: 1,
		},
		{
			name:           "no overlap between type and enabled categories",
			assessmentType: assessment.TypeNamingConvention,
			opts: assessment.Options{
				EnabledCategories: []assessment.Category{assessment.CategoryRBAC},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := reg.Resolve(tt.assessmentType, tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Resolve() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && len(nodes) != tt.wantCount {
				t.Errorf("Resolve() = %d nodes, want %d", len(nodes), tt.wantCount)
			}
		})
	}
}

func TestRegistry_ResolveCompositeIdentity(t *testing.T) {
	reg := NewRegistry(&testutil.MockDirectoryProvider{}, 0)

	nodes, err := reg.Resolve(assessment.TypeSecurityPosture, assessment.Options{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("Resolve() = %d nodes, want 1", len(nodes))
	}
	if nodes[0].Category() != assessment.CategorySecurity {
		t.Errorf("node category = %s, want security", nodes[0].Category())
	}
	if _, ok := nodes[0].(*Composite); !ok {
		t.Errorf("node type = %T, want *Composite", nodes[0])
	}
}
