package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	"github.com/frahmantamala/expense-approval/internal/core/database"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) approval.RepositoryAPI {
	return &ApprovalRepository{db: db}
}

func (r *ApprovalRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *ApprovalRepository) ListFlows(ctx context.Context, companyID int64) ([]*approvalDatamodel.Flow, error) {
	var flows []*approvalDatamodel.Flow
	err := r.conn(ctx).
		Where("company_id = ?", companyID).
		Order("step_order ASC, id ASC").
		Find(&flows).Error
	return flows, err
}

func (r *ApprovalRepository) GetFlow(ctx context.Context, companyID, id int64) (*approvalDatamodel.Flow, error) {
	var flow approvalDatamodel.Flow
	err := r.conn(ctx).Where("id = ? AND company_id = ?", id, companyID).First(&flow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrFlowNotFound
		}
		return nil, err
	}
	return &flow, nil
}

func (r *ApprovalRepository) CountFlows(ctx context.Context, companyID int64) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&approvalDatamodel.Flow{}).Where("company_id = ?", companyID).Count(&count).Error
	return count, err
}

func (r *ApprovalRepository) CreateFlows(ctx context.Context, flows []*approvalDatamodel.Flow) error {
	if len(flows) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&flows).Error
}

func (r *ApprovalRepository) UpdateFlow(ctx context.Context, flow *approvalDatamodel.Flow) error {
	return r.conn(ctx).Save(flow).Error
}

func (r *ApprovalRepository) DeleteFlow(ctx context.Context, companyID, id int64) error {
	res := r.conn(ctx).Where("id = ? AND company_id = ?", id, companyID).Delete(&approvalDatamodel.Flow{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrFlowNotFound
	}
	return nil
}

func (r *ApprovalRepository) ListRules(ctx context.Context, companyID int64) ([]*approvalDatamodel.Rule, error) {
	var rules []*approvalDatamodel.Rule
	err := r.conn(ctx).Where("company_id = ?", companyID).Order("id ASC").Find(&rules).Error
	return rules, err
}

func (r *ApprovalRepository) GetRule(ctx context.Context, companyID, id int64) (*approvalDatamodel.Rule, error) {
	var rule approvalDatamodel.Rule
	err := r.conn(ctx).Where("id = ? AND company_id = ?", id, companyID).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// GetActiveRule returns the most recently created active rule, or nil.
func (r *ApprovalRepository) GetActiveRule(ctx context.Context, companyID int64) (*approvalDatamodel.Rule, error) {
	var rule approvalDatamodel.Rule
	err := r.conn(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("id DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ApprovalRepository) CreateRule(ctx context.Context, rule *approvalDatamodel.Rule) error {
	return r.conn(ctx).Create(rule).Error
}

func (r *ApprovalRepository) UpdateRule(ctx context.Context, rule *approvalDatamodel.Rule) error {
	return r.conn(ctx).Save(rule).Error
}

func (r *ApprovalRepository) DeleteRule(ctx context.Context, companyID, id int64) error {
	res := r.conn(ctx).Where("id = ? AND company_id = ?", id, companyID).Delete(&approvalDatamodel.Rule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRuleNotFound
	}
	return nil
}

func (r *ApprovalRepository) CreateApprovals(ctx context.Context, rows []*approvalDatamodel.ExpenseApproval) error {
	if len(rows) == 0 {
		return nil
	}
	return r.conn(ctx).Create(&rows).Error
}

func (r *ApprovalRepository) ListApprovals(ctx context.Context, expenseID int64) ([]*approvalDatamodel.ExpenseApproval, error) {
	var rows []*approvalDatamodel.ExpenseApproval
	err := r.conn(ctx).
		Where("expense_id = ?", expenseID).
		Order("step_order ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *ApprovalRepository) GetPendingApproval(ctx context.Context, expenseID, approverID int64) (*approvalDatamodel.ExpenseApproval, error) {
	var row approvalDatamodel.ExpenseApproval
	err := r.conn(ctx).
		Where("expense_id = ? AND approver_id = ? AND status = ? AND step_order <> ?",
			expenseID, approverID, approvalDatamodel.StatusPending, approvalDatamodel.OverrideStepOrder).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrApprovalNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (r *ApprovalRepository) UpdateApproval(ctx context.Context, row *approvalDatamodel.ExpenseApproval) error {
	return r.conn(ctx).Model(row).
		Select("status", "comments", "approved_at", "updated_at").
		Updates(row).Error
}

func (r *ApprovalRepository) ResolvePending(ctx context.Context, expenseID int64, status, comments string, at time.Time) (int64, error) {
	res := r.conn(ctx).Model(&approvalDatamodel.ExpenseApproval{}).
		Where("expense_id = ? AND status = ?", expenseID, approvalDatamodel.StatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"comments":    comments,
			"approved_at": at,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

type pendingRow struct {
	ApprovalID      int64
	StepOrder       int
	RequestedAt     time.Time
	ExpenseID       int64
	Amount          decimal.Decimal
	CurrencyCode    string
	ConvertedAmount decimal.Decimal
	Category        string
	Description     string
	ExpenseDate     time.Time
	ExpenseStatus   string
	EmployeeID      int64
	EmployeeName    string
	EmployeeEmail   string
	CompanyID       int64
	CompanyName     string
	CurrencySymbol  string
	CompanyCurrency string
}

func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, approverID int64) ([]*approval.PendingApproval, error) {
	var rows []pendingRow
	err := r.conn(ctx).
		Table("expense_approvals AS ea").
		Select(`ea.id AS approval_id, ea.step_order, ea.created_at AS requested_at,
			e.id AS expense_id, e.amount, e.currency_code, e.converted_amount, e.category,
			e.description, e.expense_date, e.status AS expense_status,
			u.id AS employee_id, u.name AS employee_name, u.email AS employee_email,
			c.id AS company_id, c.name AS company_name, c.currency_symbol, c.currency_code AS company_currency`).
		Joins("JOIN expenses e ON e.id = ea.expense_id").
		Joins("JOIN users u ON u.id = e.employee_id").
		Joins("JOIN companies c ON c.id = e.company_id").
		Where("ea.approver_id = ? AND ea.status = ? AND e.status = ?",
			approverID, approvalDatamodel.StatusPending, expenseDatamodel.StatusPending).
		Order("ea.created_at ASC, ea.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]*approval.PendingApproval, len(rows))
	for i, row := range rows {
		result[i] = &approval.PendingApproval{
			ApprovalID:  row.ApprovalID,
			StepOrder:   row.StepOrder,
			RequestedAt: row.RequestedAt,
			Expense: approval.PendingExpense{
				ID:              row.ExpenseID,
				Amount:          row.Amount,
				CurrencyCode:    row.CurrencyCode,
				ConvertedAmount: row.ConvertedAmount,
				Category:        row.Category,
				Description:     row.Description,
				ExpenseDate:     row.ExpenseDate,
				Status:          row.ExpenseStatus,
			},
			Employee: approval.PendingEmployee{
				ID:    row.EmployeeID,
				Name:  row.EmployeeName,
				Email: row.EmployeeEmail,
			},
			Company: approval.PendingCompany{
				ID:             row.CompanyID,
				Name:           row.CompanyName,
				CurrencyCode:   row.CompanyCurrency,
				CurrencySymbol: row.CurrencySymbol,
			},
		}
	}
	return result, nil
}

func (r *ApprovalRepository) GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error) {
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

func (r *ApprovalRepository) UpdateExpenseStatus(ctx context.Context, expenseID int64, status string, resolvedAt *time.Time) error {
	return r.conn(ctx).Model(&expenseDatamodel.Expense{}).
		Where("id = ?", expenseID).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": resolvedAt,
			"updated_at":  time.Now(),
		}).Error
}

func (r *ApprovalRepository) UserInCompany(ctx context.Context, companyID, userID int64) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&userDatamodel.User{}).
		Where("id = ? AND company_id = ?", userID, companyID).
		Count(&count).Error
	return count > 0, err
}
