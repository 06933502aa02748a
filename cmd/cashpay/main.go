package main

import "github.com/servineo/payment-system/internal/cli"

func main() {
	cli.Execute()
}
