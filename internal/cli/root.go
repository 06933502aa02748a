package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/servineo/payment-system/internal/payflow"
)

var (
	baseURL  string
	demoMode bool
	client   *payflow.Client
)

var rootCmd = &cobra.Command{
	Use:   "cashpay",
	Short: "Servineo cash payment confirmation flow",
	Long: `Walk a cash payment through its confirmation flow against a running
payment service.

The requester shows the confirmation code to the fixer, who enters it to
confirm the payment was received in cash. Codes expire and invalid attempts
are limited; after too many failures confirmation is locked for a cooldown.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if baseURL == "" {
			baseURL = os.Getenv("CASHPAY_BASE_URL")
		}
		if baseURL == "" {
			baseURL = "http://localhost:8084"
		}

		opts := []payflow.ClientOption{}
		if demoMode {
			opts = append(opts, payflow.WithDemoFallback())
		}
		client = payflow.NewClient(baseURL, opts...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "payment service base URL (default $CASHPAY_BASE_URL or http://localhost:8084)")
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "substitute a simulated summary for malformed payment ids")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
