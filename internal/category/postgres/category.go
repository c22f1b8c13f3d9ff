package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/frahmantamala/expense-approval/internal/category"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	categoryDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/category"
	"gorm.io/gorm"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) category.RepositoryAPI {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *CategoryRepository) ListForCompany(ctx context.Context, companyID int64) ([]*categoryDatamodel.ExpenseCategory, error) {
	var categories []*categoryDatamodel.ExpenseCategory
	err := r.conn(ctx).
		Where("company_id IS NULL OR company_id = ?", companyID).
		Order("name ASC").
		Find(&categories).Error
	return categories, err
}

// FindByName prefers an active company category over a global one.
func (r *CategoryRepository) FindByName(ctx context.Context, companyID int64, name string) (*categoryDatamodel.ExpenseCategory, error) {
	var cat categoryDatamodel.ExpenseCategory
	err := r.conn(ctx).
		Where("LOWER(name) = ? AND (company_id IS NULL OR company_id = ?)", strings.ToLower(strings.TrimSpace(name)), companyID).
		Order("is_active DESC, company_id IS NULL, id ASC").
		First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id int64) (*categoryDatamodel.ExpenseCategory, error) {
	var cat categoryDatamodel.ExpenseCategory
	err := r.conn(ctx).Where("id = ?", id).First(&cat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cat, nil
}

func (r *CategoryRepository) Create(ctx context.Context, cat *categoryDatamodel.ExpenseCategory) error {
	return r.conn(ctx).Create(cat).Error
}

func (r *CategoryRepository) Deactivate(ctx context.Context, id int64) error {
	return r.conn(ctx).Model(&categoryDatamodel.ExpenseCategory{}).Where("id = ?", id).Update("is_active", false).Error
}
