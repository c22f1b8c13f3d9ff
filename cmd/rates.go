package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal/currency"
	currencyPostgres "github.com/frahmantamala/expense-approval/internal/currency/postgres"
	"github.com/frahmantamala/expense-approval/pkg/logger"
	"github.com/spf13/cobra"
)

var ratesBases []string

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Refresh the exchange-rate cache",
	Long:  `Fetch the latest exchange rates for the given base currencies (default: every company currency) and store them in the cache.`,
	RunE:  runRatesRefresh,
}

func init() {
	ratesCmd.Flags().StringSliceVarP(&ratesBases, "base", "b", nil, "base currency codes to refresh")
}

func runRatesRefresh(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(".")
	if err != nil {
		return err
	}
	logger.InitWithLevel(cfg.Env, cfg.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	bases := ratesBases
	if len(bases) == 0 {
		if err := db.SelectContext(ctx, &bases, `SELECT DISTINCT currency_code FROM companies ORDER BY currency_code`); err != nil {
			return fmt.Errorf("list company currencies: %w", err)
		}
	}

	client := currency.NewClient(currency.ClientConfig{
		RatesAPIURL:     cfg.Currency.RatesAPIURL,
		CountriesAPIURL: cfg.Currency.CountriesAPIURL,
		Timeout:         cfg.Currency.HTTPTimeout,
	}, lg)
	svc := currency.NewService(currencyPostgres.NewRateRepository(gdb), client, cfg.Currency.CacheTTL, nil, lg)

	failed := 0
	for _, base := range bases {
		base = strings.ToUpper(strings.TrimSpace(base))
		n, err := svc.Refresh(ctx, base)
		if err != nil {
			failed++
			lg.Error("rate refresh failed", "base", base, "error", err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: %d rates\n", base, n)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d bases failed", failed, len(bases))
	}
	return nil
}
