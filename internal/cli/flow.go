package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/servineo/payment-system/internal/models"
	"github.com/servineo/payment-system/internal/payflow"
)

var flowCmd = &cobra.Command{
	Use:   "flow <payment-id>",
	Short: "Walk the full payer/fixer confirmation flow interactively",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFlow(args[0])
	},
}

func init() {
	rootCmd.AddCommand(flowCmd)
}

func runFlow(paymentID string) {
	ctlOpts := []payflow.ControllerOption{
		payflow.OnUnlocked(func() {
			fmt.Println("\nYa puedes volver a intentar")
		}),
	}

	flow := payflow.NewFlow(client, paymentID, ctlOpts,
		payflow.OnComplete(func(s models.PaymentSummary) {
			fmt.Printf("Job payment settled: %s (%s)\n", s.ID, s.Status)
		}),
	)
	defer flow.Close()

	ctx := context.Background()
	if err := flow.Load(ctx); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		switch flow.View() {
		case payflow.ViewPayer:
			if !payerView(ctx, flow, stdin) {
				return
			}
		case payflow.ViewFixer:
			if !fixerView(ctx, flow, stdin) {
				return
			}
		case payflow.ViewSuccess:
			fmt.Println("\nPago confirmado. Presiona Enter para terminar.")
			stdin.Scan()
			_ = flow.Acknowledge()
			return
		}
	}
}

func payerView(ctx context.Context, flow *payflow.Flow, stdin *bufio.Scanner) bool {
	s := flow.Summary()
	fmt.Printf("\n-- Requester view --\n")
	fmt.Printf("Amount: %.2f %s\n", s.Amount.Total, s.Amount.Currency)

	if s.CodeExpired {
		fmt.Println("El código ha expirado.")
		fmt.Print("[r]egenerate code, [q]uit: ")
	} else {
		fmt.Printf("Code: %s\n", s.Code)
		if s.CodeExpiresAt != nil {
			fmt.Printf("Expires in %s\n", time.Until(*s.CodeExpiresAt).Round(time.Second))
		}
		fmt.Print("[c]ontinue to fixer, [r]egenerate code, [q]uit: ")
	}

	if !stdin.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(stdin.Text())) {
	case "c":
		if err := flow.Continue(); err != nil {
			if errors.Is(err, payflow.ErrCodeExpired) {
				fmt.Println("Código Expirado - genera uno nuevo primero.")
			} else {
				fmt.Printf("Error: %v\n", err)
			}
		}
	case "r":
		if err := flow.Regenerate(ctx); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "q":
		return false
	}
	return true
}

func fixerView(ctx context.Context, flow *payflow.Flow, stdin *bufio.Scanner) bool {
	snap := flow.Controller().Snapshot()
	fmt.Printf("\n-- Fixer view --\n")
	if snap.Message != "" {
		fmt.Println(snap.Message)
	}
	if snap.UnlockAt != nil {
		fmt.Printf("Bloqueado hasta %s\n", snap.UnlockAt.Local().Format(time.Kitchen))
	}

	fmt.Print("Enter code, [b]ack, [q]uit: ")
	if !stdin.Scan() {
		return false
	}
	input := strings.TrimSpace(stdin.Text())

	switch strings.ToLower(input) {
	case "b":
		if err := flow.Back(ctx); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}
		return true
	case "q":
		return false
	}

	snap, err := flow.SubmitCode(ctx, input)
	if err != nil && snap.Message != "" {
		fmt.Println(snap.Message)
	}
	if snap.RemainingAttempts >= 0 {
		fmt.Printf("Intentos restantes: %d\n", snap.RemainingAttempts)
	}
	return true
}
