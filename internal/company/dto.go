package company

import (
	"strings"

	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
)

type SignupDTO struct {
	CompanyName string `json:"company_name"`
	Country     string `json:"country"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (d SignupDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("company_name", strings.TrimSpace(d.CompanyName)).Required().MaxLength(200)
	v.Field("country", strings.TrimSpace(d.Country)).Required().MaxLength(100)
	v.Field("name", strings.TrimSpace(d.Name)).Required().MaxLength(120)
	v.Field("email", d.Email).Required().Email()
	v.Field("password", d.Password).Required().MinLength(8)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type UpdateCurrencyDTO struct {
	CurrencyCode   string  `json:"currency_code"`
	CurrencySymbol *string `json:"currency_symbol,omitempty"`
}

func (d UpdateCurrencyDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("currency_code", strings.ToUpper(d.CurrencyCode)).Required().CurrencyCode()
	if d.CurrencySymbol != nil {
		v.Field("currency_symbol", *d.CurrencySymbol).MaxLength(8)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}
