package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backoffice/internal/models"
)

var fxSyncCmd = &cobra.Command{
	Use:   "fx-sync",
	Short: "Fetch and store FX mid rates",
	Long: `Fetch the current mid rate from each currency to the quote currency
and store it for the given date. Pairs already stored are skipped.

Examples:
  backoffice fx-sync --currencies EUR,GBP,JPY --quote USD
  backoffice fx-sync --currencies EUR --quote MYR --date 2026-03-31`,
	RunE: runFXSync,
}

var (
	fxCurrencies []string
	fxQuote      string
	fxDate       string
)

func init() {
	rootCmd.AddCommand(fxSyncCmd)

	fxSyncCmd.Flags().StringSliceVar(&fxCurrencies, "currencies", nil, "Base currencies, comma separated (required)")
	fxSyncCmd.Flags().StringVar(&fxQuote, "quote", "USD", "Quote currency")
	fxSyncCmd.Flags().StringVar(&fxDate, "date", "", "Rate date as YYYY-MM-DD (default: today)")
	_ = fxSyncCmd.MarkFlagRequired("currencies")
}

func runFXSync(cmd *cobra.Command, _ []string) error {
	var date time.Time
	if fxDate != "" {
		d, err := time.Parse(models.DateLayout, fxDate)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", fxDate)
		}
		date = d
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.fxRates.Sync(cmd.Context(), fxCurrencies, fxQuote, date)
	if err != nil {
		return fmt.Errorf("fx sync failed: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
