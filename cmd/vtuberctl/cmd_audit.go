package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vtuberd/control-plane/internal/audit"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the decision-audit trail",
}

var auditRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List the most recent audited decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(auditDSN) == "" {
			return fmt.Errorf("no audit DSN configured; pass --audit-dsn or set AUDIT_DSN")
		}

		ctx := context.Background()
		sink, err := audit.NewSink(ctx, auditDSN)
		if err != nil {
			return fmt.Errorf("open audit sink: %w", err)
		}
		defer sink.Close()

		entries, err := sink.Recent(ctx, auditLimit)
		if err != nil {
			return fmt.Errorf("query audit trail: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println(infoStyle.Render("no audit entries"))
			return nil
		}

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tOUTCOME\tREASON\tTEXT")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt.Format("15:04:05"), e.Source, e.Outcome, e.Reason, truncate(e.Text, 60))
		}
		return w.Flush()
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditRecentCmd)
	auditRecentCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum entries to show")
}
