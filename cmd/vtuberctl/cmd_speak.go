package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	speakClientUID string
	speakSkipTTS   bool
)

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Speak a line through a session's adapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAPIClient(baseURL)

		var resp struct {
			Status       string `json:"status"`
			MessageID    string `json:"message_id"`
			TTSGenerated bool   `json:"tts_generated"`
		}
		req := map[string]any{
			"text":       args[0],
			"client_uid": speakClientUID,
			"skip_tts":   speakSkipTTS,
		}
		if err := client.postJSON(context.Background(), "/api/autonomous/speak", req, &resp); err != nil {
			return err
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("spoke (status=%s, message_id=%s, tts_generated=%t)", resp.Status, resp.MessageID, resp.TTSGenerated)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(speakCmd)
	speakCmd.Flags().StringVar(&speakClientUID, "client-uid", "default", "target session's client id")
	speakCmd.Flags().BoolVar(&speakSkipTTS, "skip-tts", false, "skip audio synthesis, display text only")
}
