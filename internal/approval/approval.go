package approval

import (
	"time"

	approvalDatamodel "github.com/frahmantamala/expense-approval/internal/core/datamodel/approval"
	"github.com/shopspring/decimal"
)

// Flow is the API view of a configured approval step.
type Flow struct {
	ID                int64     `json:"id"`
	CompanyID         int64     `json:"company_id"`
	StepOrder         int       `json:"step_order"`
	ApproverRole      *string   `json:"approver_role,omitempty"`
	SpecificUserID    *int64    `json:"specific_user_id,omitempty"`
	IsManagerApprover bool      `json:"is_manager_approver"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Rule struct {
	ID                  int64     `json:"id"`
	CompanyID           int64     `json:"company_id"`
	Name                string    `json:"name"`
	RuleType            string    `json:"rule_type"`
	PercentageThreshold *int      `json:"percentage_threshold,omitempty"`
	SpecificApproverID  *int64    `json:"specific_approver_id,omitempty"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type Approval struct {
	ID         int64      `json:"id"`
	ExpenseID  int64      `json:"expense_id"`
	ApproverID int64      `json:"approver_id"`
	StepOrder  int        `json:"step_order"`
	Status     string     `json:"status"`
	Comments   *string    `json:"comments,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	IsOverride bool       `json:"is_override"`
	CreatedAt  time.Time  `json:"created_at"`
}

// PendingApproval is an approval awaiting the caller, with display context.
type PendingApproval struct {
	ApprovalID  int64           `json:"approval_id"`
	StepOrder   int             `json:"step_order"`
	RequestedAt time.Time       `json:"requested_at"`
	Expense     PendingExpense  `json:"expense"`
	Employee    PendingEmployee `json:"employee"`
	Company     PendingCompany  `json:"company"`
}

type PendingExpense struct {
	ID              int64           `json:"id"`
	Amount          decimal.Decimal `json:"amount"`
	CurrencyCode    string          `json:"currency_code"`
	ConvertedAmount decimal.Decimal `json:"converted_amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	ExpenseDate     time.Time       `json:"expense_date"`
	Status          string          `json:"status"`
}

type PendingEmployee struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PendingCompany struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	CurrencyCode   string `json:"currency_code"`
	CurrencySymbol string `json:"currency_symbol"`
}

// DecisionResult reports the recorded row and the expense's recomputed status.
type DecisionResult struct {
	Approval      Approval `json:"approval"`
	ExpenseStatus string   `json:"expense_status"`
}

type OverrideResult struct {
	ExpenseID       int64    `json:"expense_id"`
	ExpenseStatus   string   `json:"expense_status"`
	ResolvedPending int64    `json:"resolved_pending"`
	OverrideRecord  Approval `json:"override_record"`
}

func FlowFromDataModel(f *approvalDatamodel.Flow) Flow {
	return Flow{
		ID:                f.ID,
		CompanyID:         f.CompanyID,
		StepOrder:         f.StepOrder,
		ApproverRole:      f.ApproverRole,
		SpecificUserID:    f.SpecificUserID,
		IsManagerApprover: f.IsManagerApprover,
		CreatedAt:         f.CreatedAt,
		UpdatedAt:         f.UpdatedAt,
	}
}

func FlowsFromDataModel(flows []*approvalDatamodel.Flow) []Flow {
	result := make([]Flow, len(flows))
	for i, f := range flows {
		result[i] = FlowFromDataModel(f)
	}
	return result
}

func RuleFromDataModel(r *approvalDatamodel.Rule) Rule {
	return Rule{
		ID:                  r.ID,
		CompanyID:           r.CompanyID,
		Name:                r.Name,
		RuleType:            r.RuleType,
		PercentageThreshold: r.PercentageThreshold,
		SpecificApproverID:  r.SpecificApproverID,
		IsActive:            r.IsActive,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func RulesFromDataModel(rules []*approvalDatamodel.Rule) []Rule {
	result := make([]Rule, len(rules))
	for i, r := range rules {
		result[i] = RuleFromDataModel(r)
	}
	return result
}

func ApprovalFromDataModel(a *approvalDatamodel.ExpenseApproval) Approval {
	return Approval{
		ID:         a.ID,
		ExpenseID:  a.ExpenseID,
		ApproverID: a.ApproverID,
		StepOrder:  a.StepOrder,
		Status:     a.Status,
		Comments:   a.Comments,
		ApprovedAt: a.ApprovedAt,
		IsOverride: a.IsOverride(),
		CreatedAt:  a.CreatedAt,
	}
}

func ApprovalsFromDataModel(rows []*approvalDatamodel.ExpenseApproval) []Approval {
	result := make([]Approval, len(rows))
	for i, a := range rows {
		result[i] = ApprovalFromDataModel(a)
	}
	return result
}
