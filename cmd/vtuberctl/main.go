// Command vtuberctl is the operator CLI for the control plane: it drives
// the REST surface (speak, expression, motion, autonomous control/status)
// and reads the audit trail directly from its sink.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	baseURL string
	auditDSN string
)

var rootCmd = &cobra.Command{
	Use:   "vtuberctl",
	Short: "Operate a running vtuber control-plane instance",
	Long: `vtuberctl drives a running control-plane instance over its REST
surface (speak a line, trigger an expression or motion, flip the
autonomous generator on/off) and inspects its audit trail.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8080", "control-plane base URL")
	rootCmd.PersistentFlags().StringVar(&auditDSN, "audit-dsn", os.Getenv("AUDIT_DSN"), "audit sink DSN (sqlite://path or a postgres DSN); defaults to $AUDIT_DSN")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
