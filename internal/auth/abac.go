package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/jmoiron/sqlx"
)

// ExpenseAttributes are the resource attributes an expense policy decides on.
type ExpenseAttributes struct {
	CompanyID  int64 `db:"company_id"`
	EmployeeID int64 `db:"employee_id"`
	IsApprover bool  `db:"is_approver"`
}

// ABACPolicy is a small attribute-based access control helper.
type ABACPolicy struct{}

// CanViewExpense allows the owner, any approver of the expense, and company
// admins and managers. Other companies never see the expense.
func (p *ABACPolicy) CanViewExpense(u *User, res ExpenseAttributes) error {
	if u == nil {
		return internal.ErrInvalidToken
	}
	if u.CompanyID != res.CompanyID {
		return internal.ErrCrossCompany
	}
	if u.ID == res.EmployeeID || res.IsApprover || u.IsAdmin() || u.IsManager() {
		return nil
	}
	return internal.ErrUnauthorizedAccess
}

// CanModifyExpense allows only the owner.
func (p *ABACPolicy) CanModifyExpense(u *User, res ExpenseAttributes) error {
	if u == nil {
		return internal.ErrInvalidToken
	}
	if u.CompanyID != res.CompanyID {
		return internal.ErrCrossCompany
	}
	if u.ID != res.EmployeeID {
		return internal.ErrUnauthorizedAccess
	}
	return nil
}

// ExpenseAttributeLoader reads the attributes of expense id as seen by userID.
type ExpenseAttributeLoader interface {
	Load(ctx context.Context, expenseID, userID int64) (ExpenseAttributes, error)
}

type SQLExpenseAttributeLoader struct {
	db *sqlx.DB
}

func NewSQLExpenseAttributeLoader(db *sqlx.DB) *SQLExpenseAttributeLoader {
	return &SQLExpenseAttributeLoader{db: db}
}

func (l *SQLExpenseAttributeLoader) Load(ctx context.Context, expenseID, userID int64) (ExpenseAttributes, error) {
	query := l.db.Rebind(`SELECT e.company_id, e.employee_id,
		EXISTS (SELECT 1 FROM expense_approvals ea WHERE ea.expense_id = e.id AND ea.approver_id = ?) AS is_approver
		FROM expenses e WHERE e.id = ?`)

	var attrs ExpenseAttributes
	if err := l.db.GetContext(ctx, &attrs, query, userID, expenseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExpenseAttributes{}, internal.ErrExpenseNotFound
		}
		return ExpenseAttributes{}, err
	}
	return attrs, nil
}

// RequireABAC is a generic middleware wrapper that runs an ABAC check
// against the expense named by the "id" URL parameter.
func (h *Handler) RequireABAC(loader ExpenseAttributeLoader, check func(u *User, res ExpenseAttributes) error) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				h.WriteAppError(w, internal.ErrInvalidToken)
				return
			}

			id, ok := h.PathInt64(w, r, "id")
			if !ok {
				return
			}

			attrs, err := loader.Load(r.Context(), id, u.ID)
			if err != nil {
				h.HandleServiceError(w, err)
				return
			}

			if err := check(u, attrs); err != nil {
				h.Logger.WarnContext(r.Context(), "access denied by expense policy",
					"user_id", u.ID,
					"expense_id", id,
					"error", err)
				h.HandleServiceError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCanViewExpense builds a middleware that checks if the authenticated user can view the expense.
func (h *Handler) RequireCanViewExpense(loader ExpenseAttributeLoader, abac *ABACPolicy) func(next http.Handler) http.Handler {
	return h.RequireABAC(loader, abac.CanViewExpense)
}

// RequireCanModifyExpense builds a middleware that checks if the user owns the expense.
func (h *Handler) RequireCanModifyExpense(loader ExpenseAttributeLoader, abac *ABACPolicy) func(next http.Handler) http.Handler {
	return h.RequireABAC(loader, abac.CanModifyExpense)
}
