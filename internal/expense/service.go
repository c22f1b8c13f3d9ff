package expense

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/approval"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"github.com/shopspring/decimal"
)

type RepositoryAPI interface {
	Create(ctx context.Context, expense *expenseDatamodel.Expense) error
	GetByID(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	ListByEmployee(ctx context.Context, employeeID int64, filter ListFilter) ([]*expenseDatamodel.Expense, error)
	ListByCompany(ctx context.Context, companyID int64, filter ListFilter) ([]*expenseDatamodel.Expense, error)
	UpdateDraft(ctx context.Context, expense *expenseDatamodel.Expense) (bool, error)
	DeleteDraft(ctx context.Context, id int64) (bool, error)
	MarkSubmitted(ctx context.Context, id int64, at time.Time) (bool, error)
	CompanyCurrency(ctx context.Context, companyID int64) (string, error)
}

type ApprovalEngine interface {
	ExpandForExpense(ctx context.Context, exp *expenseDatamodel.Expense) ([]*approvalDatamodel.ExpenseApproval, error)
	Override(ctx context.Context, actor internal.Actor, expenseID int64, dto approval.OverrideDTO) (*approval.OverrideResult, error)
	ApprovalsForExpense(ctx context.Context, expenseID int64) ([]approval.Approval, error)
}

type Converter interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string) (*currency.Conversion, error)
}

type CategoryResolver interface {
	Resolve(ctx context.Context, companyID int64, name string) (string, bool, error)
}

type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo       RepositoryAPI
	tx         Transactor
	engine     ApprovalEngine
	converter  Converter
	categories CategoryResolver
	publisher  events.Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, tx Transactor, engine ApprovalEngine, converter Converter, categories CategoryResolver, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		tx:         tx,
		engine:     engine,
		converter:  converter,
		categories: categories,
		publisher:  publisher,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateExpense stores a draft, or a submitted expense when dto.Submit is set.
func (s *Service) CreateExpense(ctx context.Context, actor internal.Actor, dto CreateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		s.logger.Warn("expense validation failed", "error", err, "user_id", actor.UserID)
		return nil, err
	}

	category, err := s.resolveCategory(ctx, actor.CompanyID, dto.Category)
	if err != nil {
		return nil, err
	}

	converted, err := s.convert(ctx, actor.CompanyID, dto.Amount, dto.CurrencyCode)
	if err != nil {
		return nil, err
	}

	exp := &expenseDatamodel.Expense{
		CompanyID:       actor.CompanyID,
		EmployeeID:      actor.UserID,
		Amount:          dto.Amount,
		CurrencyCode:    strings.ToUpper(dto.CurrencyCode),
		ConvertedAmount: converted,
		Category:        category,
		Description:     strings.TrimSpace(dto.Description),
		ExpenseDate:     dto.ExpenseDate.Time,
		Status:          expenseDatamodel.StatusDraft,
		ReceiptURL:      dto.ReceiptURL,
	}

	var approvers []*approvalDatamodel.ExpenseApproval
	err = s.tx.Run(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, exp); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		if !dto.Submit {
			return nil
		}
		approvers, err = s.submit(ctx, exp)
		return err
	})
	if err != nil {
		s.logger.Error("failed to create expense", "error", err, "user_id", actor.UserID)
		return nil, err
	}

	s.logger.Info("expense created",
		"expense_id", exp.ID,
		"user_id", actor.UserID,
		"amount", exp.Amount.String(),
		"currency", exp.CurrencyCode,
		"status", exp.Status)

	if dto.Submit {
		s.publishSubmitted(ctx, exp, approvers)
	}
	return FromDataModel(exp), nil
}

// UpdateExpense patches a draft owned by the caller.
func (s *Service) UpdateExpense(ctx context.Context, actor internal.Actor, id int64, dto UpdateExpenseDTO) (*Expense, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	exp, err := s.ownedDraft(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if dto.Category != nil {
		category, err := s.resolveCategory(ctx, exp.CompanyID, *dto.Category)
		if err != nil {
			return nil, err
		}
		exp.Category = category
	}
	if dto.Description != nil {
		exp.Description = strings.TrimSpace(*dto.Description)
	}
	if dto.ExpenseDate != nil {
		exp.ExpenseDate = dto.ExpenseDate.Time
	}
	if dto.ReceiptURL != nil {
		exp.ReceiptURL = dto.ReceiptURL
	}

	if dto.Amount != nil || dto.CurrencyCode != nil {
		if dto.Amount != nil {
			exp.Amount = *dto.Amount
		}
		if dto.CurrencyCode != nil {
			exp.CurrencyCode = strings.ToUpper(*dto.CurrencyCode)
		}
		converted, err := s.convert(ctx, exp.CompanyID, exp.Amount, exp.CurrencyCode)
		if err != nil {
			return nil, err
		}
		exp.ConvertedAmount = converted
	}

	updated, err := s.repo.UpdateDraft(ctx, exp)
	if err != nil {
		s.logger.Error("failed to update expense", "expense_id", id, "error", err)
		return nil, err
	}
	if !updated {
		return nil, internal.ErrCannotModifyExpense
	}

	s.logger.Info("expense updated", "expense_id", id, "user_id", actor.UserID)
	return FromDataModel(exp), nil
}

func (s *Service) DeleteExpense(ctx context.Context, actor internal.Actor, id int64) error {
	if _, err := s.ownedDraft(ctx, actor, id); err != nil {
		return err
	}

	deleted, err := s.repo.DeleteDraft(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete expense", "expense_id", id, "error", err)
		return err
	}
	if !deleted {
		return internal.ErrCannotModifyExpense
	}

	s.logger.Info("expense deleted", "expense_id", id, "user_id", actor.UserID)
	return nil
}

// SubmitExpense moves a draft to PENDING and expands its approval flow in
// the same transaction.
func (s *Service) SubmitExpense(ctx context.Context, actor internal.Actor, id int64) (*Expense, error) {
	var (
		exp       *expenseDatamodel.Expense
		approvers []*approvalDatamodel.ExpenseApproval
	)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkOwner(actor, exp); err != nil {
			return err
		}
		approvers, err = s.submit(ctx, exp)
		return err
	})
	if err != nil {
		s.logger.Warn("expense submission rejected", "expense_id", id, "user_id", actor.UserID, "error", err)
		return nil, err
	}

	s.logger.Info("expense submitted",
		"expense_id", id,
		"user_id", actor.UserID,
		"approvers", len(approvers))

	s.publishSubmitted(ctx, exp, approvers)
	return FromDataModel(exp), nil
}

func (s *Service) submit(ctx context.Context, exp *expenseDatamodel.Expense) ([]*approvalDatamodel.ExpenseApproval, error) {
	now := s.now()
	ok, err := s.repo.MarkSubmitted(ctx, exp.ID, now)
	if err != nil {
		return nil, fmt.Errorf("mark submitted: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("expense %d is %s: %w", exp.ID, exp.Status, internal.ErrInvalidState)
	}
	exp.Status = expenseDatamodel.StatusPending
	exp.SubmittedAt = &now

	return s.engine.ExpandForExpense(ctx, exp)
}

// GetExpense returns the expense and its approval trail. Visible to the
// owner, its approvers, and admins or managers of the company.
func (s *Service) GetExpense(ctx context.Context, actor internal.Actor, id int64) (*Detail, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exp.CompanyID != actor.CompanyID {
		return nil, internal.ErrCrossCompany
	}

	trail, err := s.engine.ApprovalsForExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	if exp.EmployeeID != actor.UserID && !actor.CanSeeCompany() && !isApprover(trail, actor.UserID) {
		s.logger.Warn("unauthorized access to expense", "expense_id", id, "user_id", actor.UserID)
		return nil, internal.ErrUnauthorizedAccess
	}

	return &Detail{Expense: FromDataModel(exp), Approvals: trail}, nil
}

// ListExpenses lists the caller's expenses, or the whole company's for
// admins and managers when filter.Scope is "company".
func (s *Service) ListExpenses(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*Expense, error) {
	filter.normalize()

	var (
		rows []*expenseDatamodel.Expense
		err  error
	)
	switch filter.Scope {
	case ScopeOwn:
		rows, err = s.repo.ListByEmployee(ctx, actor.UserID, filter)
	case ScopeCompany:
		if !actor.CanSeeCompany() {
			return nil, internal.ErrInsufficientRole
		}
		rows, err = s.repo.ListByCompany(ctx, actor.CompanyID, filter)
	default:
		return nil, internal.NewValidationFieldError("scope", "scope must be own or company", internal.ErrCodeValidationFailed)
	}
	if err != nil {
		s.logger.Error("failed to list expenses", "user_id", actor.UserID, "scope", filter.Scope, "error", err)
		return nil, err
	}
	return FromDataModelSlice(rows), nil
}

func (s *Service) OverrideApproval(ctx context.Context, actor internal.Actor, id int64, dto approval.OverrideDTO) (*approval.OverrideResult, error) {
	return s.engine.Override(ctx, actor, id, dto)
}

func (s *Service) ownedDraft(ctx context.Context, actor internal.Actor, id int64) (*expenseDatamodel.Expense, error) {
	exp, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(actor, exp); err != nil {
		return nil, err
	}
	if exp.Status != expenseDatamodel.StatusDraft {
		return nil, internal.ErrCannotModifyExpense
	}
	return exp, nil
}

func (s *Service) resolveCategory(ctx context.Context, companyID int64, name string) (string, error) {
	if s.categories == nil {
		return strings.TrimSpace(name), nil
	}
	canonical, ok, err := s.categories.Resolve(ctx, companyID, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", internal.NewValidationFieldError("category", "unknown category", internal.ErrCodeInvalidCategory)
	}
	return canonical, nil
}

// convert expresses amount in the company's currency.
func (s *Service) convert(ctx context.Context, companyID int64, amount decimal.Decimal, from string) (decimal.Decimal, error) {
	to, err := s.repo.CompanyCurrency(ctx, companyID)
	if err != nil {
		return decimal.Zero, err
	}
	conv, err := s.converter.Convert(ctx, amount, from, to)
	if err != nil {
		s.logger.Warn("currency conversion failed", "from", from, "to", to, "error", err)
		return decimal.Zero, err
	}
	return conv.Converted, nil
}

func (s *Service) publishSubmitted(ctx context.Context, exp *expenseDatamodel.Expense, rows []*approvalDatamodel.ExpenseApproval) {
	if s.publisher == nil {
		return
	}
	approverIDs := make([]int64, len(rows))
	for i, row := range rows {
		approverIDs[i] = row.ApproverID
	}
	event := events.NewExpenseSubmittedEvent(exp.ID, exp.CompanyID, exp.EmployeeID, approverIDs, exp.Amount.String(), exp.CurrencyCode)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func checkOwner(actor internal.Actor, exp *expenseDatamodel.Expense) error {
	if exp.CompanyID != actor.CompanyID {
		return internal.ErrCrossCompany
	}
	if exp.EmployeeID != actor.UserID {
		return internal.ErrUnauthorizedAccess
	}
	return nil
}

func isApprover(trail []approval.Approval, userID int64) bool {
	for _, a := range trail {
		if a.ApproverID == userID {
			return true
		}
	}
	return false
}
