package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "razorpay-gateway",
	Short: "Razorpay payments gateway",
	Long:  "A Razorpay checkout backend: order creation, payment signature verification, webhooks and ledger jobs.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
