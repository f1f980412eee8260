package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	motionClientUID string
	motionIndex     int
	motionLoop      bool
	motionPriority  int
)

var motionCmd = &cobra.Command{
	Use:   "motion <group>",
	Short: "Trigger a motion by group and index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(baseURL)
		var resp struct {
			Status string `json:"status"`
		}
		req := map[string]any{
			"motionGroup": args[0],
			"motionIndex": motionIndex,
			"loop":        motionLoop,
			"priority":    motionPriority,
			"client_uid":  motionClientUID,
		}
		if err := client.postJSON(context.Background(), "/api/motion", req, &resp); err != nil {
			return err
		}

		if resp.Status == "success" {
			fmt.Println(successStyle.Render(fmt.Sprintf("motion %s/%d triggered", args[0], motionIndex)))
		} else {
			fmt.Println(errorStyle.Render(fmt.Sprintf("motion %s/%d rejected (status=%s)", args[0], motionIndex, resp.Status)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(motionCmd)
	motionCmd.Flags().StringVar(&motionClientUID, "client-uid", "default", "target session's client id")
	motionCmd.Flags().IntVar(&motionIndex, "index", 0, "motion index within the group")
	motionCmd.Flags().BoolVar(&motionLoop, "loop", false, "loop the motion")
	motionCmd.Flags().IntVar(&motionPriority, "priority", 0, "priority")
}
