package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show platform status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			health, err := apiClient.Health(ctx)
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			pending, err := apiClient.Assessments().Pending(ctx)
			if err != nil {
				return err
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(map[string]interface{}{
					"server":              health.Status,
					"database":            health.Database,
					"pending_assessments": len(pending),
				})
			}

			fmt.Println("AzGovernor Status")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  Server:       %s\n", formatStatus(health.Status))
			if health.Database != "" {
				fmt.Printf("  Database:     %s\n", formatStatus(health.Database))
			}
			fmt.Printf("  Pending:      %d assessments\n", len(pending))

			if len(pending) > 0 {
				fmt.Println()
				table := NewTable("ID", "TYPE", "CUSTOMER", "CREATED")
				for _, a := range pending {
					table.AddRow(truncate(a.ID, 12), a.Type, a.CustomerID, a.CreatedAt.Format("2006-01-02 15:04"))
				}
				table.Render()
			}

			return nil
		},
	}
}
