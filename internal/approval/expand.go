package approval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/frahmantamala/expense-approval/internal"
	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	userDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/user"
)

// UnresolvedApproverPolicy decides what happens to a step without an approver.
type UnresolvedApproverPolicy string

const (
	PolicySkip     UnresolvedApproverPolicy = "skip"
	PolicyFail     UnresolvedApproverPolicy = "fail"
	PolicyFallback UnresolvedApproverPolicy = "fallback"
)

// ManagerResolution selects how an is_manager_approver step is resolved.
type ManagerResolution string

const (
	// ManagerByRelation routes to the submitter's designated manager.
	ManagerByRelation ManagerResolution = "relation"
	// ManagerAnyInCompany routes to any MANAGER of the company.
	ManagerAnyInCompany ManagerResolution = "any"
)

// ApproverDirectory answers the user lookups flow expansion needs.
type ApproverDirectory interface {
	FindUserByRole(ctx context.Context, companyID int64, role string) (userID int64, found bool, err error)
	FindManagerOf(ctx context.Context, companyID, employeeID int64) (managerID int64, found bool, err error)
}

// Submission identifies the expense being expanded.
type Submission struct {
	ExpenseID  int64
	CompanyID  int64
	EmployeeID int64
}

type Expander struct {
	directory  ApproverDirectory
	policy     UnresolvedApproverPolicy
	resolution ManagerResolution
	logger     *slog.Logger
}

func NewExpander(directory ApproverDirectory, policy UnresolvedApproverPolicy, resolution ManagerResolution, logger *slog.Logger) *Expander {
	if policy == "" {
		policy = PolicySkip
	}
	if resolution == "" {
		resolution = ManagerByRelation
	}
	return &Expander{
		directory:  directory,
		policy:     policy,
		resolution: resolution,
		logger:     logger,
	}
}

// Expand turns the company's flow steps into PENDING approval rows for one
// submission. Rows are returned unsaved, ordered by step.
func (e *Expander) Expand(ctx context.Context, sub Submission, steps []*approvalDatamodel.Flow) ([]*approvalDatamodel.ExpenseApproval, error) {
	if len(steps) == 0 {
		return e.adminFallback(ctx, sub)
	}

	ordered := make([]*approvalDatamodel.Flow, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StepOrder != ordered[j].StepOrder {
			return ordered[i].StepOrder < ordered[j].StepOrder
		}
		return ordered[i].ID < ordered[j].ID
	})

	rows := make([]*approvalDatamodel.ExpenseApproval, 0, len(ordered))
	seen := make(map[int64]bool, len(ordered))

	for _, step := range ordered {
		approverID, found, err := e.resolve(ctx, sub, step)
		if err != nil {
			return nil, fmt.Errorf("resolve approver for step %d: %w", step.StepOrder, err)
		}

		if !found {
			switch e.policy {
			case PolicyFail:
				e.logger.Warn("approval step has no approver",
					"expense_id", sub.ExpenseID,
					"step_order", step.StepOrder,
					"flow_id", step.ID)
				return nil, fmt.Errorf("step %d: %w", step.StepOrder, internal.ErrNoApprovers)
			case PolicyFallback:
				approverID, found, err = e.directory.FindUserByRole(ctx, sub.CompanyID, userDatamodel.RoleAdmin)
				if err != nil {
					return nil, fmt.Errorf("resolve fallback admin for step %d: %w", step.StepOrder, err)
				}
			}
		}

		if !found {
			e.logger.Info("skipping approval step without approver",
				"expense_id", sub.ExpenseID,
				"step_order", step.StepOrder,
				"flow_id", step.ID)
			continue
		}

		if seen[approverID] {
			continue
		}
		seen[approverID] = true

		rows = append(rows, newPendingRow(sub.ExpenseID, approverID, step.StepOrder))
	}

	if len(rows) == 0 && e.policy == PolicyFail {
		return nil, internal.ErrNoApprovers
	}

	return rows, nil
}

func (e *Expander) resolve(ctx context.Context, sub Submission, step *approvalDatamodel.Flow) (int64, bool, error) {
	switch {
	case step.IsManagerApprover:
		if e.resolution == ManagerAnyInCompany {
			return e.directory.FindUserByRole(ctx, sub.CompanyID, userDatamodel.RoleManager)
		}
		return e.directory.FindManagerOf(ctx, sub.CompanyID, sub.EmployeeID)
	case step.SpecificUserID != nil:
		return *step.SpecificUserID, true, nil
	case step.ApproverRole != nil && *step.ApproverRole != "":
		return e.directory.FindUserByRole(ctx, sub.CompanyID, *step.ApproverRole)
	default:
		return 0, false, nil
	}
}

// adminFallback builds the single-step flow used when a company configured none.
func (e *Expander) adminFallback(ctx context.Context, sub Submission) ([]*approvalDatamodel.ExpenseApproval, error) {
	adminID, found, err := e.directory.FindUserByRole(ctx, sub.CompanyID, userDatamodel.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("resolve fallback admin: %w", err)
	}
	if !found {
		e.logger.Warn("no approval flow and no admin; expense will have no approvers",
			"expense_id", sub.ExpenseID,
			"company_id", sub.CompanyID)
		if e.policy == PolicyFail {
			return nil, internal.ErrNoApprovers
		}
		return []*approvalDatamodel.ExpenseApproval{}, nil
	}
	return []*approvalDatamodel.ExpenseApproval{newPendingRow(sub.ExpenseID, adminID, 1)}, nil
}

func newPendingRow(expenseID, approverID int64, stepOrder int) *approvalDatamodel.ExpenseApproval {
	return &approvalDatamodel.ExpenseApproval{
		ExpenseID:  expenseID,
		ApproverID: approverID,
		StepOrder:  stepOrder,
		Status:     approvalDatamodel.StatusPending,
	}
}
