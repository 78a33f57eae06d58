package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/azgovernor/azgovernor/pkg/client"
)

func newAssessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Run and inspect governance assessments",
	}

	cmd.AddCommand(newAssessRunCmd())
	cmd.AddCommand(newAssessGetCmd())
	cmd.AddCommand(newAssessFindingsCmd())
	cmd.AddCommand(newAssessCancelCmd())

	return cmd
}

func newAssessRunCmd() *cobra.Command {
	var (
		environmentID string
		customerID    string
		subscriptions []string
		categories    []string
		requiredTags  []string
		wait          bool
	)

	cmd := &cobra.Command{
		Use:   "run <type>",
		Short: "Start an assessment",
		Long: `Start an assessment of the given type. Types: naming_convention,
tagging, cost, security_posture, identity_access, business_continuity, full.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			resp, err := apiClient.Assessments().Start(ctx, &client.StartAssessmentRequest{
				EnvironmentID:     environmentID,
				CustomerID:        customerID,
				SubscriptionIDs:   subscriptions,
				Type:              args[0],
				EnabledCategories: categories,
				RequiredTags:      requiredTags,
			})
			if err != nil {
				return err
			}

			if !wait {
				fmt.Printf("Assessment %s accepted (%s)\n", resp.ID, resp.Status)
				fmt.Printf("Poll with: azgovernor assess get %s\n", resp.ID)
				return nil
			}

			fmt.Printf("Assessment %s accepted, waiting for completion...\n", resp.ID)
			a, err := apiClient.Assessments().Wait(ctx, resp.ID, 3*time.Second)
			if err != nil {
				return err
			}
			return renderAssessment(a)
		},
	}

	cmd.Flags().StringVarP(&environmentID, "environment", "e", "", "environment ID (required)")
	cmd.Flags().StringVarP(&customerID, "customer", "c", "", "customer ID (required)")
	cmd.Flags().StringSliceVarP(&subscriptions, "subscription", "s", nil, "subscription ID (repeatable, required)")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to specific categories")
	cmd.Flags().StringSliceVar(&requiredTags, "required-tag", nil, "override the required tag set")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the assessment to finish")
	_ = cmd.MarkFlagRequired("environment")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("subscription")

	return cmd
}

func newAssessGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := apiClient.Assessments().Get(context.Background(), args[0])
			if err != nil {
				return err
			}
			return renderAssessment(a)
		},
	}
}

func newAssessFindingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "findings <id>",
		Short: "List the findings of an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			findings, err := apiClient.Assessments().Findings(context.Background(), args[0])
			if err != nil {
				return err
			}

			if getOutputFormat() != "table" {
				return printOutput(findings)
			}

			table := NewTable("SEVERITY", "CATEGORY", "RESOURCE", "ISSUE")
			for _, f := range findings {
				table.AddRow(formatSeverity(f.Severity), f.Category, truncate(f.ResourceName, 30), truncate(f.Issue, 60))
			}
			table.Render()
			return nil
		},
	}
}

func newAssessCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Assessments().Cancel(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Assessment %s canceled\n", args[0])
			return nil
		},
	}
}

func renderAssessment(a *client.Assessment) error {
	if getOutputFormat() != "table" {
		return printOutput(a)
	}

	fmt.Printf("Assessment %s\n", a.ID)
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("  Type:       %s\n", a.Type)
	fmt.Printf("  Status:     %s\n", formatStatus(a.Status))
	if a.OverallScore != nil {
		fmt.Printf("  Score:      %.1f / 100\n", *a.OverallScore)
	}
	fmt.Printf("  Resources:  %d analyzed\n", a.ResourcesAnalyzed)
	fmt.Printf("  Issues:     %d found\n", a.IssuesFound)
	if a.ErrorMessage != "" {
		fmt.Printf("  Error:      %s\n", a.ErrorMessage)
	}
	if len(a.UnavailableCategories) > 0 {
		fmt.Printf("  Unavailable: %s\n", strings.Join(a.UnavailableCategories, ", "))
	}

	if len(a.CategoryResults) > 0 {
		fmt.Println()
		table := NewTable("CATEGORY", "SCORE", "RESOURCES", "FINDINGS")
		for _, c := range a.CategoryResults {
			score := "n/a"
			if c.Score != nil {
				score = fmt.Sprintf("%.1f", *c.Score)
			}
			table.AddRow(c.Category, score, fmt.Sprintf("%d", c.TotalResources), fmt.Sprintf("%d", c.FindingCount))
		}
		table.Render()
	}

	if len(a.Recommendations) > 0 {
		fmt.Println()
		fmt.Println("Recommendations:")
		for _, r := range a.Recommendations {
			fmt.Printf("  %s %s\n", formatSeverity(r.Priority), r.Title)
		}
	}

	return nil
}
