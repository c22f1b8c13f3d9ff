package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/company"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	"gorm.io/gorm"
)

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) company.RepositoryAPI {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, c *companyDatamodel.Company) error {
	return database.Conn(ctx, r.db).Create(c).Error
}

func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*companyDatamodel.Company, error) {
	var c companyDatamodel.Company
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrCompanyNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CompanyRepository) UpdateCurrency(ctx context.Context, id int64, code, symbol string) error {
	res := database.Conn(ctx, r.db).Model(&companyDatamodel.Company{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"currency_code":   code,
			"currency_symbol": symbol,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrCompanyNotFound
	}
	return nil
}
