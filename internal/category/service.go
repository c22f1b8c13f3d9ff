package category

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/expense-approval/internal"
	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
)

type RepositoryAPI interface {
	ListForCompany(ctx context.Context, companyID int64) ([]*categoryDatamodel.ExpenseCategory, error)
	GetByID(ctx context.Context, id int64) (*categoryDatamodel.ExpenseCategory, error)
	FindByName(ctx context.Context, companyID int64, name string) (*categoryDatamodel.ExpenseCategory, error)
	Create(ctx context.Context, category *categoryDatamodel.ExpenseCategory) error
	Deactivate(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// GetAllCategories lists the active global categories plus the company's own.
func (s *Service) GetAllCategories(ctx context.Context, companyID int64) ([]CategoryResponse, error) {
	dataCategories, err := s.repo.ListForCompany(ctx, companyID)
	if err != nil {
		s.logger.Error("failed to get categories from repository", "error", err, "company_id", companyID)
		return nil, err
	}

	responses := make([]CategoryResponse, 0, len(dataCategories))
	for _, dataCategory := range dataCategories {
		domainCategory := FromDataModel(dataCategory)
		if domainCategory.IsActiveCategory() {
			responses = append(responses, domainCategory.ToResponse())
		}
	}

	s.logger.Debug("retrieved categories", "company_id", companyID, "count", len(responses))
	return responses, nil
}

// Resolve returns the canonical name of an active category visible to the
// company. Matching ignores case and surrounding spaces.
func (s *Service) Resolve(ctx context.Context, companyID int64, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false, nil
	}

	cat, err := s.repo.FindByName(ctx, companyID, name)
	if err != nil {
		s.logger.Warn("error checking category validity", "name", name, "error", err)
		return "", false, err
	}
	if cat == nil || !cat.IsActive {
		return "", false, nil
	}
	return cat.Name, true, nil
}

func (s *Service) Create(ctx context.Context, actor internal.Actor, dto CreateCategoryDTO) (*Category, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(dto.Name)
	existing, err := s.repo.FindByName(ctx, actor.CompanyID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.IsActive {
		return nil, internal.NewConflictError("Category already exists", internal.ErrCodeInvalidCategory)
	}

	cat := NewCategory(actor.CompanyID, name, dto.Description)
	data := ToDataModel(cat)
	if err := s.repo.Create(ctx, data); err != nil {
		s.logger.Error("failed to create category", "company_id", actor.CompanyID, "error", err)
		return nil, err
	}

	s.logger.Info("category created", "category_id", data.ID, "company_id", actor.CompanyID, "name", name)
	return FromDataModel(data), nil
}

// Deactivate hides a company category. Global categories are read-only.
func (s *Service) Deactivate(ctx context.Context, actor internal.Actor, id int64) error {
	if !actor.IsAdmin() {
		return internal.ErrInsufficientRole
	}

	cat, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if cat == nil || cat.CompanyID == nil || *cat.CompanyID != actor.CompanyID {
		return internal.NewNotFoundError("Category not found", internal.ErrCodeInvalidCategory)
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		s.logger.Error("failed to deactivate category", "category_id", id, "error", err)
		return err
	}
	s.logger.Info("category deactivated", "category_id", id, "company_id", actor.CompanyID)
	return nil
}
