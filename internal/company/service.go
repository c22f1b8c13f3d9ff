package company

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"github.com/frahmantamala/expense-approval/internal/user"
)

type RepositoryAPI interface {
	Create(ctx context.Context, c *companyDatamodel.Company) error
	GetByID(ctx context.Context, id int64) (*companyDatamodel.Company, error)
	UpdateCurrency(ctx context.Context, id int64, code, symbol string) error
}

type AdminRegistrar interface {
	RegisterAdmin(ctx context.Context, dto user.RegisterAdminDTO) (*user.User, error)
}

type FlowInitializer interface {
	SetupDefaultFlow(ctx context.Context, actor internal.Actor, companyID int64) ([]approval.Flow, bool, error)
}

type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo      RepositoryAPI
	tx        Transactor
	countries currency.CountryClient
	admins    AdminRegistrar
	flows     FlowInitializer
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, tx Transactor, countries currency.CountryClient, admins AdminRegistrar, flows FlowInitializer, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		countries: countries,
		admins:    admins,
		flows:     flows,
		publisher: publisher,
		logger:    logger,
	}
}

// Signup creates a company in its country's currency together with its
// first ADMIN and the default approval flow, all in one transaction.
func (s *Service) Signup(ctx context.Context, dto SignupDTO) (*SignupResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	info, err := s.countries.LookupCountry(ctx, strings.TrimSpace(dto.Country))
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		s.logger.Error("country lookup failed", "country", dto.Country, "error", err)
		return nil, internal.NewExternalError("Country lookup is unavailable", internal.ErrCodeUpstreamFailed, err)
	}

	c := &companyDatamodel.Company{
		Name:           strings.TrimSpace(dto.CompanyName),
		Country:        info.Name,
		CurrencyCode:   info.CurrencyCode,
		CurrencySymbol: info.CurrencySymbol,
	}

	var admin *user.User
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			return fmt.Errorf("create company: %w", err)
		}

		var err error
		admin, err = s.admins.RegisterAdmin(ctx, user.RegisterAdminDTO{
			CompanyID: c.ID,
			Name:      dto.Name,
			Email:     dto.Email,
			Password:  dto.Password,
		})
		if err != nil {
			return err
		}

		if s.flows == nil {
			return nil
		}
		actor := internal.Actor{UserID: admin.ID, CompanyID: c.ID, Role: admin.Role}
		_, _, err = s.flows.SetupDefaultFlow(ctx, actor, c.ID)
		return err
	})
	if err != nil {
		s.logger.Warn("signup failed", "company", dto.CompanyName, "error", err)
		return nil, err
	}

	s.logger.Info("company signed up",
		"company_id", c.ID,
		"admin_id", admin.ID,
		"country", c.Country,
		"currency", c.CurrencyCode)

	if s.publisher != nil {
		event := events.NewUserCreatedEvent(admin.ID, c.ID, admin.Email, admin.Name, "")
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
		}
	}

	return &SignupResult{Company: FromDataModel(c), Admin: admin}, nil
}

func (s *Service) GetCompany(ctx context.Context, actor internal.Actor) (*Company, error) {
	c, err := s.repo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return FromDataModel(c), nil
}

// UpdateCurrency changes the currency new expenses are converted into.
// Existing converted amounts are left as recorded.
func (s *Service) UpdateCurrency(ctx context.Context, actor internal.Actor, dto UpdateCurrencyDTO) (*Company, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	c, err := s.repo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}

	code := strings.ToUpper(dto.CurrencyCode)
	symbol := c.CurrencySymbol
	if dto.CurrencySymbol != nil {
		symbol = *dto.CurrencySymbol
	} else if code != c.CurrencyCode {
		symbol = ""
	}

	if err := s.repo.UpdateCurrency(ctx, c.ID, code, symbol); err != nil {
		return nil, err
	}

	s.logger.Info("company currency updated", "company_id", c.ID, "from", c.CurrencyCode, "to", code, "admin_id", actor.UserID)
	c.CurrencyCode = code
	c.CurrencySymbol = symbol
	return FromDataModel(c), nil
}
