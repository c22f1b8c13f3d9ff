package currency

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeRate struct {
	ID             int64           `gorm:"primaryKey"`
	BaseCurrency   string          `gorm:"column:base_currency;size:3;not null;uniqueIndex:idx_exchange_rates_pair"`
	TargetCurrency string          `gorm:"column:target_currency;size:3;not null;uniqueIndex:idx_exchange_rates_pair"`
	Rate           decimal.Decimal `gorm:"column:rate;type:numeric(20,10);not null"`
	FetchedAt      time.Time       `gorm:"column:fetched_at;not null"`
}

func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

func (r *ExchangeRate) IsStale(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.FetchedAt) > ttl
}
