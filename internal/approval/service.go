package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/expense-approval/internal"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	expenseDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/expense"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
	"github.com/frahmantamala/expense-approval/internal/core/events"
	"github.com/frahmantamala/expense-approval/pkg/metrics"
)

type RepositoryAPI interface {
	ListFlows(ctx context.Context, companyID int64) ([]*approvalDatamodel.Flow, error)
	GetFlow(ctx context.Context, companyID, id int64) (*approvalDatamodel.Flow, error)
	CountFlows(ctx context.Context, companyID int64) (int64, error)
	CreateFlows(ctx context.Context, flows []*approvalDatamodel.Flow) error
	UpdateFlow(ctx context.Context, flow *approvalDatamodel.Flow) error
	DeleteFlow(ctx context.Context, companyID, id int64) error

	ListRules(ctx context.Context, companyID int64) ([]*approvalDatamodel.Rule, error)
	GetRule(ctx context.Context, companyID, id int64) (*approvalDatamodel.Rule, error)
	GetActiveRule(ctx context.Context, companyID int64) (*approvalDatamodel.Rule, error)
	CreateRule(ctx context.Context, rule *approvalDatamodel.Rule) error
	UpdateRule(ctx context.Context, rule *approvalDatamodel.Rule) error
	DeleteRule(ctx context.Context, companyID, id int64) error

	CreateApprovals(ctx context.Context, rows []*approvalDatamodel.ExpenseApproval) error
	ListApprovals(ctx context.Context, expenseID int64) ([]*approvalDatamodel.ExpenseApproval, error)
	GetPendingApproval(ctx context.Context, expenseID, approverID int64) (*approvalDatamodel.ExpenseApproval, error)
	UpdateApproval(ctx context.Context, row *approvalDatamodel.ExpenseApproval) error
	ResolvePending(ctx context.Context, expenseID int64, status, comments string, at time.Time) (int64, error)
	ListPendingForApprover(ctx context.Context, approverID int64) ([]*PendingApproval, error)

	GetExpense(ctx context.Context, id int64) (*expenseDatamodel.Expense, error)
	UpdateExpenseStatus(ctx context.Context, expenseID int64, status string, resolvedAt *time.Time) error
	UserInCompany(ctx context.Context, companyID, userID int64) (bool, error)
}

// Transactor runs fn as one atomic unit of work.
type Transactor interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

type Options struct {
	// ApplyRules lets an active company rule replace the unanimous veto strategy.
	ApplyRules bool
}

type Service struct {
	repo      RepositoryAPI
	tx        Transactor
	expander  *Expander
	publisher events.Publisher
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryAPI, tx Transactor, expander *Expander, publisher events.Publisher, m *metrics.Metrics, opts Options, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		tx:        tx,
		expander:  expander,
		publisher: publisher,
		metrics:   m,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// ExpandForExpense materializes the company's flow for a freshly submitted
// expense. It must be called inside the transaction that moves the expense
// to PENDING.
func (s *Service) ExpandForExpense(ctx context.Context, exp *expenseDatamodel.Expense) ([]*approvalDatamodel.ExpenseApproval, error) {
	steps, err := s.repo.ListFlows(ctx, exp.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("list approval flows: %w", err)
	}

	rows, err := s.expander.Expand(ctx, Submission{
		ExpenseID:  exp.ID,
		CompanyID:  exp.CompanyID,
		EmployeeID: exp.EmployeeID,
	}, steps)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		if err := s.repo.CreateApprovals(ctx, rows); err != nil {
			return nil, fmt.Errorf("create approval rows: %w", err)
		}
	}

	s.metrics.ApprovalExpansion(len(rows))
	s.logger.Info("approval flow expanded",
		"expense_id", exp.ID,
		"company_id", exp.CompanyID,
		"steps", len(steps),
		"approvers", len(rows))

	return rows, nil
}

// RecordDecision stores one approver decision and recomputes the expense status.
func (s *Service) RecordDecision(ctx context.Context, actor internal.Actor, expenseID int64, dto DecisionDTO) (*DecisionResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	var (
		result  DecisionResult
		exp     *expenseDatamodel.Expense
		settled bool
	)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if exp.CompanyID != actor.CompanyID {
			return internal.ErrCrossCompany
		}
		if exp.Status != expenseDatamodel.StatusPending {
			return fmt.Errorf("expense %d is %s: %w", expenseID, exp.Status, internal.ErrInvalidState)
		}

		row, err := s.repo.GetPendingApproval(ctx, expenseID, actor.UserID)
		if err != nil {
			return err
		}

		now := s.now()
		row.Status = dto.Status
		row.Comments = dto.Comments
		row.ApprovedAt = nil
		if dto.Status == approvalDatamodel.StatusApproved {
			row.ApprovedAt = &now
		}
		if err := s.repo.UpdateApproval(ctx, row); err != nil {
			return fmt.Errorf("update approval: %w", err)
		}

		rows, err := s.repo.ListApprovals(ctx, expenseID)
		if err != nil {
			return fmt.Errorf("list approvals: %w", err)
		}

		strategy, err := s.strategyFor(ctx, exp.CompanyID)
		if err != nil {
			return err
		}

		status := strategy.Aggregate(rows)
		if status != exp.Status {
			var resolvedAt *time.Time
			if status != expenseDatamodel.StatusPending {
				resolvedAt = &now
				settled = true
			}
			if err := s.repo.UpdateExpenseStatus(ctx, expenseID, status, resolvedAt); err != nil {
				return fmt.Errorf("update expense status: %w", err)
			}
			exp.Status = status
		}

		result = DecisionResult{
			Approval:      ApprovalFromDataModel(row),
			ExpenseStatus: status,
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("approval decision rejected",
			"expense_id", expenseID,
			"approver_id", actor.UserID,
			"error", err)
		return nil, err
	}

	s.metrics.ApprovalDecision(dto.Status, result.ExpenseStatus)
	s.logger.Info("approval decision recorded",
		"expense_id", expenseID,
		"approver_id", actor.UserID,
		"decision", dto.Status,
		"expense_status", result.ExpenseStatus)

	if settled {
		s.publish(ctx, events.NewExpenseResolvedEvent(exp.ID, exp.EmployeeID, result.ExpenseStatus, false))
	}

	return &result, nil
}

// Override force-resolves a submitted expense on behalf of a company admin.
func (s *Service) Override(ctx context.Context, actor internal.Actor, expenseID int64, dto OverrideDTO) (*OverrideResult, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}

	var (
		result OverrideResult
		exp    *expenseDatamodel.Expense
	)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		var err error
		exp, err = s.repo.GetExpense(ctx, expenseID)
		if err != nil {
			return err
		}
		if exp.CompanyID != actor.CompanyID {
			return internal.ErrCrossCompany
		}
		if exp.Status == expenseDatamodel.StatusDraft {
			return fmt.Errorf("expense %d has not been submitted: %w", expenseID, internal.ErrInvalidState)
		}

		now := s.now()
		comments := overrideNote(actor.UserID, dto.Status)
		if dto.Comments != nil && *dto.Comments != "" {
			comments = *dto.Comments
		}

		if err := s.repo.UpdateExpenseStatus(ctx, expenseID, dto.Status, &now); err != nil {
			return fmt.Errorf("update expense status: %w", err)
		}

		resolved, err := s.repo.ResolvePending(ctx, expenseID, dto.Status, comments, now)
		if err != nil {
			return fmt.Errorf("resolve pending approvals: %w", err)
		}

		record := &approvalDatamodel.ExpenseApproval{
			ExpenseID:  expenseID,
			ApproverID: actor.UserID,
			StepOrder:  approvalDatamodel.OverrideStepOrder,
			Status:     dto.Status,
			Comments:   &comments,
			ApprovedAt: &now,
		}
		if err := s.repo.CreateApprovals(ctx, []*approvalDatamodel.ExpenseApproval{record}); err != nil {
			return fmt.Errorf("create override record: %w", err)
		}

		result = OverrideResult{
			ExpenseID:       expenseID,
			ExpenseStatus:   dto.Status,
			ResolvedPending: resolved,
			OverrideRecord:  ApprovalFromDataModel(record),
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("approval override rejected",
			"expense_id", expenseID,
			"admin_id", actor.UserID,
			"error", err)
		return nil, err
	}

	s.metrics.ApprovalOverride(dto.Status)
	s.logger.Info("approval overridden",
		"expense_id", expenseID,
		"admin_id", actor.UserID,
		"status", dto.Status,
		"resolved_pending", result.ResolvedPending)

	s.publish(ctx, events.NewExpenseResolvedEvent(exp.ID, exp.EmployeeID, dto.Status, true))

	return &result, nil
}

// PendingFor lists every approval row awaiting the actor's decision.
func (s *Service) PendingFor(ctx context.Context, actor internal.Actor) ([]*PendingApproval, error) {
	pending, err := s.repo.ListPendingForApprover(ctx, actor.UserID)
	if err != nil {
		s.logger.Error("failed to list pending approvals", "approver_id", actor.UserID, "error", err)
		return nil, err
	}
	return pending, nil
}

// ApprovalsForExpense returns the full approval trail of an expense.
func (s *Service) ApprovalsForExpense(ctx context.Context, expenseID int64) ([]Approval, error) {
	rows, err := s.repo.ListApprovals(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return ApprovalsFromDataModel(rows), nil
}

// SetupDefaultFlow seeds a manager step followed by an admin step. It is a
// no-op when the company already has a flow.
func (s *Service) SetupDefaultFlow(ctx context.Context, actor internal.Actor, companyID int64) ([]Flow, bool, error) {
	if err := s.requireAdminOf(actor, companyID); err != nil {
		return nil, false, err
	}

	var (
		flows   []*approvalDatamodel.Flow
		created bool
	)

	err := s.tx.Run(ctx, func(ctx context.Context) error {
		existing, err := s.repo.CountFlows(ctx, companyID)
		if err != nil {
			return err
		}
		if existing > 0 {
			flows, err = s.repo.ListFlows(ctx, companyID)
			return err
		}

		adminRole := userDatamodel.RoleAdmin
		flows = []*approvalDatamodel.Flow{
			{CompanyID: companyID, StepOrder: 1, IsManagerApprover: true},
			{CompanyID: companyID, StepOrder: 2, ApproverRole: &adminRole},
		}
		created = true
		return s.repo.CreateFlows(ctx, flows)
	})
	if err != nil {
		s.logger.Error("failed to set up default flow", "company_id", companyID, "error", err)
		return nil, false, err
	}

	s.logger.Info("default approval flow ensured", "company_id", companyID, "created", created)
	return FlowsFromDataModel(flows), created, nil
}

func (s *Service) ListFlows(ctx context.Context, actor internal.Actor) ([]Flow, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	flows, err := s.repo.ListFlows(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return FlowsFromDataModel(flows), nil
}

func (s *Service) CreateFlow(ctx context.Context, actor internal.Actor, dto CreateFlowDTO) (*Flow, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSpecificUser(ctx, actor.CompanyID, dto.SpecificUserID); err != nil {
		return nil, err
	}

	flow := &approvalDatamodel.Flow{
		CompanyID:         actor.CompanyID,
		StepOrder:         dto.StepOrder,
		ApproverRole:      dto.ApproverRole,
		SpecificUserID:    dto.SpecificUserID,
		IsManagerApprover: dto.IsManagerApprover,
	}
	if err := s.repo.CreateFlows(ctx, []*approvalDatamodel.Flow{flow}); err != nil {
		s.logger.Error("failed to create flow step", "company_id", actor.CompanyID, "error", err)
		return nil, err
	}

	s.logger.Info("flow step created", "flow_id", flow.ID, "company_id", actor.CompanyID, "step_order", flow.StepOrder)
	result := FlowFromDataModel(flow)
	return &result, nil
}

func (s *Service) UpdateFlow(ctx context.Context, actor internal.Actor, id int64, dto UpdateFlowDTO) (*Flow, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}

	flow, err := s.repo.GetFlow(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if err := dto.Validate(flow.StepOrder); err != nil {
		return nil, err
	}
	if err := s.checkSpecificUser(ctx, actor.CompanyID, dto.SpecificUserID); err != nil {
		return nil, err
	}

	if dto.StepOrder != nil {
		flow.StepOrder = *dto.StepOrder
	}
	flow.ApproverRole = dto.ApproverRole
	flow.SpecificUserID = dto.SpecificUserID
	flow.IsManagerApprover = dto.IsManagerApprover

	if err := s.repo.UpdateFlow(ctx, flow); err != nil {
		s.logger.Error("failed to update flow step", "flow_id", id, "error", err)
		return nil, err
	}

	result := FlowFromDataModel(flow)
	return &result, nil
}

func (s *Service) DeleteFlow(ctx context.Context, actor internal.Actor, id int64) error {
	if !actor.IsAdmin() {
		return internal.ErrInsufficientRole
	}
	if err := s.repo.DeleteFlow(ctx, actor.CompanyID, id); err != nil {
		return err
	}
	s.logger.Info("flow step deleted", "flow_id", id, "company_id", actor.CompanyID)
	return nil
}

func (s *Service) ListRules(ctx context.Context, actor internal.Actor) ([]Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	rules, err := s.repo.ListRules(ctx, actor.CompanyID)
	if err != nil {
		return nil, err
	}
	return RulesFromDataModel(rules), nil
}

func (s *Service) CreateRule(ctx context.Context, actor internal.Actor, dto CreateRuleDTO) (*Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkSpecificUser(ctx, actor.CompanyID, dto.SpecificApproverID); err != nil {
		return nil, err
	}

	rule := &approvalDatamodel.Rule{
		CompanyID:           actor.CompanyID,
		Name:                dto.Name,
		RuleType:            dto.RuleType,
		PercentageThreshold: dto.PercentageThreshold,
		SpecificApproverID:  dto.SpecificApproverID,
		IsActive:            true,
	}
	if dto.IsActive != nil {
		rule.IsActive = *dto.IsActive
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		s.logger.Error("failed to create approval rule", "company_id", actor.CompanyID, "error", err)
		return nil, err
	}

	result := RuleFromDataModel(rule)
	return &result, nil
}

func (s *Service) UpdateRule(ctx context.Context, actor internal.Actor, id int64, dto UpdateRuleDTO) (*Rule, error) {
	if !actor.IsAdmin() {
		return nil, internal.ErrInsufficientRole
	}

	rule, err := s.repo.GetRule(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, err
	}
	if err := dto.Apply(rule); err != nil {
		return nil, err
	}
	if err := s.checkSpecificUser(ctx, actor.CompanyID, rule.SpecificApproverID); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		s.logger.Error("failed to update approval rule", "rule_id", id, "error", err)
		return nil, err
	}

	result := RuleFromDataModel(rule)
	return &result, nil
}

func (s *Service) DeleteRule(ctx context.Context, actor internal.Actor, id int64) error {
	if !actor.IsAdmin() {
		return internal.ErrInsufficientRole
	}
	return s.repo.DeleteRule(ctx, actor.CompanyID, id)
}

func (s *Service) strategyFor(ctx context.Context, companyID int64) (Strategy, error) {
	if !s.opts.ApplyRules {
		return UnanimousVeto{}, nil
	}
	rule, err := s.repo.GetActiveRule(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("load active rule: %w", err)
	}
	return StrategyFor(rule), nil
}

func (s *Service) requireAdminOf(actor internal.Actor, companyID int64) error {
	if !actor.IsAdmin() {
		return internal.ErrInsufficientRole
	}
	if actor.CompanyID != companyID {
		return internal.ErrCrossCompany
	}
	return nil
}

func (s *Service) checkSpecificUser(ctx context.Context, companyID int64, userID *int64) error {
	if userID == nil {
		return nil
	}
	ok, err := s.repo.UserInCompany(ctx, companyID, *userID)
	if err != nil {
		return err
	}
	if !ok {
		return internal.NewValidationFieldError("specific_user_id", "user does not belong to this company", internal.ErrCodeUserNotFound)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func overrideNote(adminID int64, status string) string {
	return fmt.Sprintf("Overridden to %s by admin %d", status, adminID)
}
