package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusDraft    = "DRAFT"
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

type Expense struct {
	ID              int64           `gorm:"primaryKey"`
	CompanyID       int64           `gorm:"column:company_id;not null;index"`
	EmployeeID      int64           `gorm:"column:employee_id;not null;index"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	CurrencyCode    string          `gorm:"column:currency_code;size:3;not null"`
	ConvertedAmount decimal.Decimal `gorm:"column:converted_amount;type:numeric(14,2);not null"`
	Category        string          `gorm:"column:category;not null"`
	Description     string          `gorm:"column:description;not null"`
	ExpenseDate     time.Time       `gorm:"column:expense_date;not null"`
	Status          string          `gorm:"column:status;not null;default:DRAFT;index"`
	ReceiptURL      *string         `gorm:"column:receipt_url"`
	SubmittedAt     *time.Time      `gorm:"column:submitted_at"`
	ResolvedAt      *time.Time      `gorm:"column:resolved_at"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Expense) TableName() string {
	return "expenses"
}
