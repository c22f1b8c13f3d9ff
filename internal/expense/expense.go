package expense

import (
	"time"

	"github.com/frahmantamala/expense-approval/internal/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/shopspring/decimal"
)

type Expense struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	EmployeeID      int64           `json:"employee_id"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	ExpenseDate     time.Time       `json:"expense_date"`
	Status          string          `json:"status"`
	ReceiptURL      *string         `json:"receipt_url,omitempty"`
	SubmittedAt     *time.Time      `json:"submitted_at,omitempty"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Detail is an expense together with its approval trail.
type Detail struct {
	*Expense
	Approvals []approval.Approval `json:"approvals"`
}

func (e *Expense) IsDraft() bool {
	return e.Status == expenseDatamodel.StatusDraft
}

func (e *Expense) IsResolved() bool {
	return e.Status == expenseDatamodel.StatusApproved || e.Status == expenseDatamodel.StatusRejected
}

func FromDataModel(e *expenseDatamodel.Expense) *Expense {
	return &Expense{
		ID:              e.ID,
		CompanyID:       e.CompanyID,
		EmployeeID:      e.EmployeeID,
		Amount:          e.Amount,
		CurrencyCode:    e.CurrencyCode,
		ConvertedAmount: e.ConvertedAmount,
		Category:        e.Category,
		Description:     e.Description,
		ExpenseDate:     e.ExpenseDate,
		Status:          e.Status,
		ReceiptURL:      e.ReceiptURL,
		SubmittedAt:     e.SubmittedAt,
		ResolvedAt:      e.ResolvedAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func FromDataModelSlice(expenses []*expenseDatamodel.Expense) []*Expense {
	result := make([]*Expense, len(expenses))
	for i, e := range expenses {
		result[i] = FromDataModel(e)
	}
	return result
}
