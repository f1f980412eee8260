package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the autonomous generator's current status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(baseURL)
		var resp map[string]any
		if err := client.getJSON(context.Background(), "/api/autonomous/status", &resp); err != nil {
			return err
		}

		fmt.Println(sectionStyle.Render("autonomous status"))
		for _, key := range []string{"mode", "character", "autonomous_generator_enabled", "min_interval_seconds", "max_interval_seconds", "auto_responses_enabled"} {
			fmt.Printf("  %s: %v\n", dimStyle.Render(key), resp[key])
		}
		return nil
	},
}

var (
	controlEnabled     bool
	controlMinInterval float64
	controlMaxInterval float64
	controlSetEnabled  bool
	controlSetMin      bool
	controlSetMax      bool
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Enable/disable or reinterval the autonomous generator",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		if controlSetEnabled {
			req["enabled"] = controlEnabled
		}
		if controlSetMin {
			req["min_interval"] = controlMinInterval
		}
		if controlSetMax {
			req["max_interval"] = controlMaxInterval
		}
		if len(req) == 0 {
			return fmt.Errorf("at least one of --enabled, --min-interval, --max-interval is required")
		}

		client := newAPIClient(baseURL)
		var resp map[string]any
		if err := client.postJSON(context.Background(), "/api/autonomous/control", req, &resp); err != nil {
			return err
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("enabled=%v min_interval=%vs max_interval=%vs", resp["enabled"], resp["min_interval"], resp["max_interval"])))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(controlCmd)

	controlCmd.Flags().BoolVar(&controlEnabled, "enabled", false, "enable or disable the autonomous generator")
	controlCmd.Flags().Float64Var(&controlMinInterval, "min-interval", 0, "minimum seconds between autonomous lines")
	controlCmd.Flags().Float64Var(&controlMaxInterval, "max-interval", 0, "maximum seconds between autonomous lines")
	controlCmd.PreRun = func(cmd *cobra.Command, args []string) {
		controlSetEnabled = cmd.Flags().Changed("enabled")
		controlSetMin = cmd.Flags().Changed("min-interval")
		controlSetMax = cmd.Flags().Changed("max-interval")
	}
}
