package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	expressionClientUID string
	expressionDuration   int
	expressionPriority   int
)

var expressionCmd = &cobra.Command{
	Use:   "expression <id>",
	Short: "Trigger an expression by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseInt(args[0])
		if err != nil {
			return fmt.Errorf("invalid expression id %q: %w", args[0], err)
		}

		client := newAPIClient(baseURL)
		var resp struct {
			Status string `json:"status"`
		}
		req := map[string]any{
			"expressionId": id,
			"duration":     expressionDuration,
			"priority":     expressionPriority,
			"client_uid":   expressionClientUID,
		}
		if err := client.postJSON(context.Background(), "/api/expression", req, &resp); err != nil {
			return err
		}

		if resp.Status == "success" {
			fmt.Println(successStyle.Render(fmt.Sprintf("expression %d triggered", id)))
		} else {
			fmt.Println(errorStyle.Render(fmt.Sprintf("expression %d rejected (status=%s)", id, resp.Status)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(expressionCmd)
	expressionCmd.Flags().StringVar(&expressionClientUID, "client-uid", "default", "target session's client id")
	expressionCmd.Flags().IntVar(&expressionDuration, "duration", 0, "duration in milliseconds")
	expressionCmd.Flags().IntVar(&expressionPriority, "priority", 0, "priority")
}
