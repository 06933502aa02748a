package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/servineo/payment-system/internal/models"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <payment-id>",
	Short: "Show a payment's current state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		summary, err := client.Summary(ctx, args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		printSummary(summary)
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <payment-id>",
	Short: "Issue a fresh confirmation code for a pending payment",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		summary, err := client.Regenerate(ctx, args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("New code issued.")
		printSummary(summary)
	},
}

func printSummary(s models.PaymentSummary) {
	fmt.Printf("Payment:  %s\n", s.ID)
	fmt.Printf("Status:   %s\n", s.Status)
	fmt.Printf("Amount:   %.2f %s\n", s.Amount.Total, s.Amount.Currency)
	if s.Code != "" {
		if s.CodeExpired {
			fmt.Println("Code:     (expired - regenerate to get a new one)")
		} else {
			fmt.Printf("Code:     %s\n", s.Code)
		}
	}
	if s.CodeExpiresAt != nil && !s.CodeExpired {
		fmt.Printf("Expires:  %s\n", s.CodeExpiresAt.Local().Format(time.RFC1123))
	}
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(regenerateCmd)
}
