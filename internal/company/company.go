package company

import (
	"time"

	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	"github.com/frahmantamala/expense-approval/internal/user"
)

type Company struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Country        string    `json:"country"`
	CurrencyCode   string    `json:"currency_code"`
	CurrencySymbol string    `json:"currency_symbol"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// SignupResult is the new company together with its first admin.
type SignupResult struct {
	Company *Company   `json:"company"`
	Admin   *user.User `json:"admin"`
}

func FromDataModel(c *companyDatamodel.Company) *Company {
	return &Company{
		ID:             c.ID,
		Name:           c.Name,
		Country:        c.Country,
		CurrencyCode:   c.CurrencyCode,
		CurrencySymbol: c.CurrencySymbol,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}
