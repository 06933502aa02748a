package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/servineo/payment-system/internal/payflow"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm <payment-id> <code>",
	Short: "Confirm a payment with its code (fixer side)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		ctl := payflow.NewController(client, args[0])
		defer ctl.Close()

		snap, err := ctl.Submit(ctx, args[1])
		if err == nil {
			fmt.Printf("%s\n", snap.Message)
			if snap.Result != nil {
				fmt.Printf("Payment %s is now %s (%.2f)\n",
					snap.Result.ID, snap.Result.Status, snap.Result.Total)
			}
			return
		}

		fmt.Printf("%s\n", snap.Message)
		var apiErr *payflow.APIError
		if errors.As(err, &apiErr) && errors.Is(err, payflow.ErrLockedOut) {
			fmt.Printf("Try again after %s\n", apiErr.UnlockAt.Local().Format(time.Kitchen))
		}
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(confirmCmd)
}
