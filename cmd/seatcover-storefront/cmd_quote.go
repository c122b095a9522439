package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/seatcover-storefront/internal/pricing"
)

var (
	quoteModel string
	quoteTitle string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Show the seat count and price for a vehicle model",
	Example: `  seatcover-storefront quote --model "Lodgy (7 locuri)" --title "Huse Eco"
  seatcover-storefront quote --model "Golf" --title "Huse Romb Premium"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		q := pricing.Explain(quoteTitle, quoteModel)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "model:   %q\n", quoteModel)
		fmt.Fprintf(out, "seats:   %d (rule %s)\n", q.Seats, q.Rule)
		fmt.Fprintf(out, "premium: %t\n", q.Premium)
		fmt.Fprintf(out, "price:   %s\n", q.Price)
		return nil
	},
}

func init() {
	quoteCmd.Flags().StringVar(&quoteModel, "model", "", "vehicle model name as listed in the catalog")
	quoteCmd.Flags().StringVar(&quoteTitle, "title", "", "product title")
}
