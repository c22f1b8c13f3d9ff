package currency

import (
	"strings"
	"time"

	currencyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/currency"
	"github.com/shopspring/decimal"
)

type Rate struct {
	Base      string          `json:"base"`
	Target    string          `json:"target"`
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Conversion is the result of converting an amount between two currencies.
// Rate is 1 when From equals To.
type Conversion struct {
	Amount    decimal.Decimal `json:"amount"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Rate      decimal.Decimal `json:"rate"`
	Converted decimal.Decimal `json:"converted"`
}

type CountryInfo struct {
	Name           string `json:"name"`
	CurrencyCode   string `json:"currency_code"`
	CurrencySymbol string `json:"currency_symbol"`
}

func RateFromDataModel(r *currencyDatamodel.ExchangeRate) Rate {
	return Rate{
		Base:      r.BaseCurrency,
		Target:    r.TargetCurrency,
		Rate:      r.Rate,
		FetchedAt: r.FetchedAt,
	}
}

func RatesFromDataModel(rows []*currencyDatamodel.ExchangeRate) []Rate {
	result := make([]Rate, len(rows))
	for i, r := range rows {
		result[i] = RateFromDataModel(r)
	}
	return result
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
