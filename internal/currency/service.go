package currency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	currencyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/currency"
	"github.com/frahmantamala/expense-approval/pkg/metrics"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

type RepositoryAPI interface {
	GetRate(ctx context.Context, base, target string) (*currencyDatamodel.ExchangeRate, error)
	ListRates(ctx context.Context, base string) ([]*currencyDatamodel.ExchangeRate, error)
	UpsertRates(ctx context.Context, rates []*currencyDatamodel.ExchangeRate) error
}

type Service struct {
	repo    RepositoryAPI
	client  RatesClient
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(repo RepositoryAPI, client RatesClient, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		repo:    repo,
		client:  client,
		ttl:     ttl,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Convert converts amount from one currency to another, rounded to cents.
// Identical currencies pass through unchanged and without a rate lookup.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*Conversion, error) {
	from, to = normalize(from), normalize(to)

	if from == to {
		return &Conversion{
			Amount:    amount,
			From:      from,
			To:        to,
			Rate:      decimal.NewFromInt(1),
			Converted: amount,
		}, nil
	}

	rate, err := s.Rate(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		Amount:    amount,
		From:      from,
		To:        to,
		Rate:      rate.Rate,
		Converted: amount.Mul(rate.Rate).Round(2),
	}, nil
}

// Rate returns the base→target rate, refreshing the cache when the stored
// row is missing or older than the freshness window.
func (s *Service) Rate(ctx context.Context, base, target string) (*Rate, error) {
	base, target = normalize(base), normalize(target)

	cached, err := s.repo.GetRate(ctx, base, target)
	if err != nil {
		return nil, fmt.Errorf("load cached rate: %w", err)
	}
	if cached != nil && !cached.IsStale(s.now(), s.ttl) {
		s.metrics.RateCache(true)
		rate := RateFromDataModel(cached)
		return &rate, nil
	}
	s.metrics.RateCache(false)

	rows, err := s.refresh(ctx, base)
	if err != nil {
		if cached != nil && !errors.Is(err, internal.ErrUnsupportedCurrency) {
			s.logger.Warn("serving stale exchange rate",
				"base", base,
				"target", target,
				"fetched_at", cached.FetchedAt,
				"error", err)
			rate := RateFromDataModel(cached)
			return &rate, nil
		}
		return nil, err
	}

	for _, row := range rows {
		if row.TargetCurrency == target {
			rate := RateFromDataModel(row)
			return &rate, nil
		}
	}
	return nil, internal.ErrUnsupportedCurrency
}

// RatesFor returns every cached rate for base, refreshing when none are fresh.
func (s *Service) RatesFor(ctx context.Context, base string) ([]Rate, error) {
	base = normalize(base)

	rows, err := s.repo.ListRates(ctx, base)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && !rows[0].IsStale(s.now(), s.ttl) {
		s.metrics.RateCache(true)
		return RatesFromDataModel(rows), nil
	}
	s.metrics.RateCache(false)

	rows, err = s.refresh(ctx, base)
	if err != nil {
		return nil, err
	}
	return RatesFromDataModel(rows), nil
}

// Refresh forces a fetch of every rate for base.
func (s *Service) Refresh(ctx context.Context, base string) (int, error) {
	rows, err := s.refresh(ctx, normalize(base))
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// refresh collapses concurrent fetches for the same base into one upstream call.
func (s *Service) refresh(ctx context.Context, base string) ([]*currencyDatamodel.ExchangeRate, error) {
	v, err, shared := s.group.Do(base, func() (interface{}, error) {
		quotes, err := s.client.FetchRates(ctx, base)
		if err != nil {
			return nil, err
		}

		fetchedAt := s.now()
		rows := make([]*currencyDatamodel.ExchangeRate, 0, len(quotes))
		for target, rate := range quotes {
			target = normalize(target)
			if target == base || !rate.IsPositive() {
				continue
			}
			rows = append(rows, &currencyDatamodel.ExchangeRate{
				BaseCurrency:   base,
				TargetCurrency: target,
				Rate:           rate,
				FetchedAt:      fetchedAt,
			})
		}

		if err := s.repo.UpsertRates(ctx, rows); err != nil {
			return nil, fmt.Errorf("store exchange rates: %w", err)
		}

		s.logger.Info("exchange rates refreshed", "base", base, "count", len(rows))
		return rows, nil
	})
	if err != nil {
		var appErr *internal.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		s.logger.Error("failed to refresh exchange rates", "base", base, "error", err)
		return nil, fmt.Errorf("%w: %v", internal.ErrRatesUnavailable, err)
	}
	if shared {
		s.logger.Debug("exchange rate refresh shared", "base", base)
	}
	return v.([]*currencyDatamodel.ExchangeRate), nil
}
