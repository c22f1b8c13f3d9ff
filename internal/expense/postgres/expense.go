package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	companyDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/company"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/expense"
	"gorm.io/gorm"
)

// ExpenseRepository implements expense.RepositoryAPI using GORM
type ExpenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) expense.RepositoryAPI {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *ExpenseRepository) Create(ctx context.Context, exp *expenseDatamodel.Expense) error {
	return r.conn(ctx).Create(exp).Error
}

func (r *ExpenseRepository) GetByID(ctx context.Context, id int64) (*expenseDatamodel.Expense, error) {
	var exp expenseDatamodel.Expense
	err := r.conn(ctx).Where("id = ?", id).First(&exp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrExpenseNotFound
		}
		return nil, err
	}
	return &exp, nil
}

func (r *ExpenseRepository) ListByEmployee(ctx context.Context, employeeID int64, filter expense.ListFilter) ([]*expenseDatamodel.Expense, error) {
	return r.list(ctx, r.conn(ctx).Where("employee_id = ?", employeeID), filter)
}

func (r *ExpenseRepository) ListByCompany(ctx context.Context, companyID int64, filter expense.ListFilter) ([]*expenseDatamodel.Expense, error) {
	return r.list(ctx, r.conn(ctx).Where("company_id = ?", companyID), filter)
}

func (r *ExpenseRepository) list(ctx context.Context, q *gorm.DB, filter expense.ListFilter) ([]*expenseDatamodel.Expense, error) {
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var rows []*expenseDatamodel.Expense
	err := q.Order("created_at DESC, id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&rows).Error
	return rows, err
}

// UpdateDraft writes the editable fields while the expense is still a draft.
func (r *ExpenseRepository) UpdateDraft(ctx context.Context, exp *expenseDatamodel.Expense) (bool, error) {
	res := r.conn(ctx).Model(&expenseDatamodel.Expense{}).
		Where("id = ? AND status = ?", exp.ID, expenseDatamodel.StatusDraft).
		Updates(map[string]interface{}{
			"amount":           exp.Amount,
			"currency_code":    exp.CurrencyCode,
			"converted_amount": exp.ConvertedAmount,
			"category":         exp.Category,
			"description":      exp.Description,
			"expense_date":     exp.ExpenseDate,
			"receipt_url":      exp.ReceiptURL,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ExpenseRepository) DeleteDraft(ctx context.Context, id int64) (bool, error) {
	res := r.conn(ctx).
		Where("id = ? AND status = ?", id, expenseDatamodel.StatusDraft).
		Delete(&expenseDatamodel.Expense{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkSubmitted flips DRAFT to PENDING. It reports false when another
// request already moved the expense out of DRAFT.
func (r *ExpenseRepository) MarkSubmitted(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.conn(ctx).Model(&expenseDatamodel.Expense{}).
		Where("id = ? AND status = ?", id, expenseDatamodel.StatusDraft).
		Updates(map[string]interface{}{
			"status":       expenseDatamodel.StatusPending,
			"submitted_at": at,
			"updated_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ExpenseRepository) CompanyCurrency(ctx context.Context, companyID int64) (string, error) {
	var company companyDatamodel.Company
	err := r.conn(ctx).Select("currency_code").Where("id = ?", companyID).First(&company).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", internal.ErrCompanyNotFound
		}
		return "", err
	}
	return company.CurrencyCode, nil
}
