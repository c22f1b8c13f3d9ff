package expense

import (
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date accepts either a calendar date or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return internal.NewValidationFieldError("expense_date", "expense_date must be YYYY-MM-DD", internal.ErrCodeInvalidDate)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

type CreateExpenseDTO struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currency_code"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	ExpenseDate  Date            `json:"expense_date"`
	ReceiptURL   *string         `json:"receipt_url,omitempty"`
	Submit       bool            `json:"submit"`
}

func (dto CreateExpenseDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("amount", dto.Amount).PositiveDecimal(internal.ErrCodeInvalidAmount).MaxDecimals(2, internal.ErrCodeInvalidAmount)
	v.Field("currency_code", strings.ToUpper(dto.CurrencyCode)).Required().CurrencyCode()
	v.Field("category", dto.Category).Required().MaxLength(100)
	v.Field("description", dto.Description).Required().MaxLength(500)
	v.Field("expense_date", dto.ExpenseDate.Time).Required().NotFuture()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateExpenseDTO patches a draft. Nil fields keep their value.
type UpdateExpenseDTO struct {
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	CurrencyCode *string          `json:"currency_code,omitempty"`
	Category     *string          `json:"category,omitempty"`
	Description  *string          `json:"description,omitempty"`
	ExpenseDate  *Date            `json:"expense_date,omitempty"`
	ReceiptURL   *string          `json:"receipt_url,omitempty"`
}

func (dto UpdateExpenseDTO) Validate() error {
	v := validation.NewValidator()
	if dto.Amount != nil {
		v.Field("amount", *dto.Amount).PositiveDecimal(internal.ErrCodeInvalidAmount).MaxDecimals(2, internal.ErrCodeInvalidAmount)
	}
	if dto.CurrencyCode != nil {
		v.Field("currency_code", strings.ToUpper(*dto.CurrencyCode)).Required().CurrencyCode()
	}
	if dto.Category != nil {
		v.Field("category", *dto.Category).Required().MaxLength(100)
	}
	if dto.Description != nil {
		v.Field("description", *dto.Description).Required().MaxLength(500)
	}
	if dto.ExpenseDate != nil {
		v.Field("expense_date", dto.ExpenseDate.Time).Required().NotFuture()
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ListFilter struct {
	Scope  string
	Status string
	Limit  int
	Offset int
}

const (
	ScopeOwn     = "own"
	ScopeCompany = "company"
)

func (f *ListFilter) normalize() {
	if f.Scope == "" {
		f.Scope = ScopeOwn
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Status = strings.ToUpper(f.Status)
}
