package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
)

func TestLoadConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.StaleIdentityDays != 90 {
			t.Errorf("StaleIdentityDays = %d, want 90", cfg.StaleIdentityDays)
		}
		if cfg.PenaltyFor(assessment.SeverityCritical) != 5 {
			t.Errorf("critical penalty = %v, want 5", cfg.PenaltyFor(assessment.SeverityCritical))
		}
	})

	t.Run("overlay from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		data := []byte("stale_identity_days: 30\ncategory_weights:\n  security: 2.5\n")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.StaleIdentityDays != 30 {
			t.Errorf("StaleIdentityDays = %d, want 30", cfg.StaleIdentityDays)
		}
		if cfg.WeightFor(assessment.CategorySecurity) != 2.5 {
			t.Errorf("security weight = %v, want 2.5", cfg.WeightFor(assessment.CategorySecurity))
		}
		// Defaults survive a partial overlay.
		if cfg.TagCoverageWeight != 0.6 {
			t.Errorf("TagCoverageWeight = %v, want 0.6", cfg.TagCoverageWeight)
		}
	})

	t.Run("invalid weights rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "scoring.yaml")
		data := []byte("tag_coverage_weight: 0.2\ntag_quality_weight: 0.8\n")
		if err := os.WriteFile(path, data, 0644); err != nil {
			t.Fatal(err)
		}

		if _, err := LoadConfig(path); err == nil {
			t.Error("LoadConfig() error = nil, want validation error when quality outweighs coverage")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
			t.Error("LoadConfig() error = nil, want read error")
		}
	})
}

func TestConfig_WeightFor(t *testing.T) {
	cfg := DefaultConfig()
	if w := cfg.WeightFor(assessment.CategoryCost); w != 1.0 {
		t.Errorf("WeightFor(unconfigured) = %v, want 1.0", w)
	}
	cfg.CategoryWeights[assessment.CategoryCost] = 3
	if w := cfg.WeightFor(assessment.CategoryCost); w != 3 {
		t.Errorf("WeightFor(configured) = %v, want 3", w)
	}
}

func TestConfig_RequiredTagSet(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.RequiredTagSet(nil); len(got) != 3 {
		t.Errorf("RequiredTagSet(nil) = %v, want the 3 defaults", got)
	}
	if got := cfg.RequiredTagSet([]string{"team"}); len(got) != 1 || got[0] != "team" {
		t.Errorf("RequiredTagSet(override) = %v, want [team]", got)
	}
}
