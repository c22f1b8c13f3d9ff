package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal/core/database"
	currencyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/currency"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RateRepository struct {
	db *gorm.DB
}

func NewRateRepository(db *gorm.DB) currency.RepositoryAPI {
	return &RateRepository{db: db}
}

// GetRate returns nil without error when the pair has never been cached.
func (r *RateRepository) GetRate(ctx context.Context, base, target string) (*currencyDatamodel.ExchangeRate, error) {
	var rate currencyDatamodel.ExchangeRate
	err := database.Conn(ctx, r.db).
		Where("base_currency = ? AND target_currency = ?", base, target).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func (r *RateRepository) ListRates(ctx context.Context, base string) ([]*currencyDatamodel.ExchangeRate, error) {
	var rates []*currencyDatamodel.ExchangeRate
	err := database.Conn(ctx, r.db).
		Where("base_currency = ?", base).
		Order("fetched_at ASC, target_currency ASC").
		Find(&rates).Error
	return rates, err
}

func (r *RateRepository) UpsertRates(ctx context.Context, rates []*currencyDatamodel.ExchangeRate) error {
	if len(rates) == 0 {
		return nil
	}
	return database.Conn(ctx, r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "base_currency"}, {Name: "target_currency"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "fetched_at"}),
		}).
		CreateInBatches(rates, 200).Error
}
